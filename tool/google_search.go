package tool

import (
	"errors"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
)

// GoogleSearch declares the provider's native web search grounding. The
// model performs the search itself; calling it locally is an error.
type GoogleSearch struct{}

var (
	_ Tool    = GoogleSearch{}
	_ Builtin = GoogleSearch{}
)

// Name implements Tool.
func (GoogleSearch) Name() string { return string(model.BuiltinGoogleSearch) }

// Description implements Tool.
func (GoogleSearch) Description() string {
	return "Search the web with Google and ground the answer in the results."
}

// Parameters implements Tool.
func (GoogleSearch) Parameters() map[string]any { return map[string]any{"type": "object"} }

// Builtin implements Builtin.
func (GoogleSearch) Builtin() model.BuiltinTool { return model.BuiltinGoogleSearch }

// Call implements Tool.
func (GoogleSearch) Call(*core.ToolContext, map[string]any) (any, error) {
	return nil, errors.New("google_search is executed by the model provider")
}
