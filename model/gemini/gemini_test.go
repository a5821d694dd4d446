package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
)

func TestToContents_RolesAndFunctionParts(t *testing.T) {
	req := model.Request{
		Instructions: "You are a planner.",
		Contents: []core.Content{
			core.NewTextContent("system", "Be brief."),
			core.NewTextContent("user", "Plan Rome"),
			{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID: "c1", Name: "inspiration_agent", Arguments: `{"request":"Rome"}`,
			}}}},
			{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
				ID: "c1", Name: "inspiration_agent", Response: "Colosseum",
			}}}},
		},
	}

	contents, system := toContents(req)

	assert.Equal(t, "You are a planner.\n\nBe brief.", system)
	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "Plan Rome", contents[0].Parts[0].Text)

	assert.Equal(t, genai.RoleModel, contents[1].Role)
	fc := contents[1].Parts[0].FunctionCall
	require.NotNil(t, fc)
	assert.Equal(t, "inspiration_agent", fc.Name)
	assert.Equal(t, "Rome", fc.Args["request"])

	fr := contents[2].Parts[0].FunctionResponse
	require.NotNil(t, fr)
	assert.Equal(t, "Colosseum", fr.Response["output"])
}

func TestToTools_SearchSeparate(t *testing.T) {
	tools := toTools(model.Request{
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name: "itinerary_agent", Parameters: map[string]any{"type": "object"},
		}}},
		BuiltinTools: []model.BuiltinTool{model.BuiltinGoogleSearch},
	})

	require.Len(t, tools, 2)
	assert.Len(t, tools[0].FunctionDeclarations, 1)
	assert.NotNil(t, tools[1].GoogleSearch)
}

func TestFromResponse_TextAndCalls(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{
				{Text: "thinking", Thought: true},
				{Text: "Day 1"},
				{FunctionCall: &genai.FunctionCall{Name: "activities_agent", Args: map[string]any{"request": "x"}}},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 4, TotalTokenCount: 7},
	}

	out := fromResponse(resp)
	require.Len(t, out.Content.Parts, 2)
	assert.Equal(t, core.TextPart{Text: "Day 1"}, out.Content.Parts[0])

	call, ok := out.Content.Parts[1].(core.FunctionCallPart)
	require.True(t, ok)
	assert.NotEmpty(t, call.FunctionCall.ID)
	assert.JSONEq(t, `{"request":"x"}`, call.FunctionCall.Arguments)
	assert.Equal(t, model.FinishReasonToolCalls, out.FinishReason)
	assert.Equal(t, 7, out.Usage.TotalTokens)
}

func TestFromResponse_Blocked(t *testing.T) {
	out := fromResponse(&genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
	})
	assert.Equal(t, model.FinishReasonBlocked, out.FinishReason)
	assert.Equal(t, "SAFETY", out.BlockReason)

	out = fromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety, FinishMessage: "unsafe"}},
	})
	assert.Equal(t, model.FinishReasonBlocked, out.FinishReason)
	assert.Equal(t, "unsafe", out.BlockReason)
}

func TestInfo(t *testing.T) {
	m := NewModelFromClient(nil, func(o *Options) { o.Model = "gemini-2.5-pro" })
	info := m.Info()
	assert.Equal(t, "gemini-2.5-pro", info.Name)
	assert.True(t, info.SupportsGrounding)
}
