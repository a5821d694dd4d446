// Package gemini provides an implementation of model.Model on the Google
// Gen AI SDK (Gemini API or Vertex AI). Besides function calling it honours
// the built-in Google Search grounding tool.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
)

// DefaultModel is the model id used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Options configure the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// Model wraps genai Models.GenerateContent behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

// NewModel creates a Gemini API backed model using apiKey.
func NewModel(ctx context.Context, apiKey string, optFns ...func(o *Options)) (*Model, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return NewModelFromClient(client, optFns...), nil
}

// NewModelFromClient creates a new Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:           DefaultModel,
		Temperature:     0.7,
		MaxOutputTokens: 8192,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents, system := toContents(req)
		cfg := m.buildConfig(req, system)

		if req.Stream {
			m.handleStreaming(ctx, contents, cfg, out, errCh)
			return
		}

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, cfg)
		if err != nil {
			errCh <- fmt.Errorf("gemini generate content: %w", err)
			return
		}

		out <- fromResponse(resp)
	}()

	return out, errCh
}

func (m *Model) handleStreaming(
	ctx context.Context,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	var (
		text  strings.Builder
		calls []core.Part
		last  model.Response
	)

	for chunk, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, cfg) {
		if err != nil {
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}

		r := fromResponse(chunk)
		for _, p := range r.Content.Parts {
			switch pt := p.(type) {
			case core.TextPart:
				text.WriteString(pt.Text)
				out <- model.Response{Partial: true, Content: core.NewTextContent("assistant", pt.Text)}
			case core.FunctionCallPart:
				calls = append(calls, pt)
			}
		}

		last = r
	}

	parts := make([]core.Part, 0, len(calls)+1)
	if text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: text.String()})
	}

	parts = append(parts, calls...)

	last.Partial = false
	last.Content = core.Content{Role: "assistant", Parts: parts}
	out <- last
}

func (m *Model) buildConfig(req model.Request, system string) *genai.GenerateContentConfig {
	temp := m.opts.Temperature

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: m.opts.MaxOutputTokens,
	}

	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	cfg.Tools = toTools(req)

	return cfg
}

// toTools maps function definitions plus requested built-ins. Gemini rejects
// mixing search grounding with function declarations in one tool entry, so
// each goes into its own genai.Tool.
func toTools(req model.Request) []*genai.Tool {
	var tools []*genai.Tool

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: t.Function.Parameters,
			})
		}

		tools = append(tools, &genai.Tool{FunctionDeclarations: decls})
	}

	if req.HasBuiltin(model.BuiltinGoogleSearch) {
		tools = append(tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}

	return tools
}

// toContents converts normalized contents into genai contents. System role
// contents are folded into the system instruction together with
// req.Instructions.
func toContents(req model.Request) ([]*genai.Content, string) {
	system := []string{}
	if req.Instructions != "" {
		system = append(system, req.Instructions)
	}

	contents := make([]*genai.Content, 0, len(req.Contents))

	for _, c := range req.Contents {
		if c.Role == "system" {
			if t := c.Text(); t != "" {
				system = append(system, t)
			}
			continue
		}

		role := genai.RoleUser
		if c.Role == "assistant" {
			role = genai.RoleModel
		}

		parts := make([]*genai.Part, 0, len(c.Parts))

		for _, p := range c.Parts {
			switch pt := p.(type) {
			case core.TextPart:
				if pt.Text != "" {
					parts = append(parts, genai.NewPartFromText(pt.Text))
				}
			case core.DataPart:
				if raw, err := json.Marshal(pt.Data); err == nil {
					parts = append(parts, genai.NewPartFromText(string(raw)))
				}
			case core.FunctionCallPart:
				args := map[string]any{}
				if pt.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(pt.FunctionCall.Arguments), &args)
				}

				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   pt.FunctionCall.ID,
					Name: pt.FunctionCall.Name,
					Args: args,
				}})
			case core.FunctionResponsePart:
				fr := pt.FunctionResponse

				resp := map[string]any{"output": fr.Response}
				if fr.Error != "" {
					resp = map[string]any{"error": fr.Error}
				}

				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       fr.ID,
					Name:     fr.Name,
					Response: resp,
				}})
			}
		}

		if len(parts) == 0 {
			continue
		}

		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	return contents, strings.Join(system, "\n\n")
}

// fromResponse normalises the first candidate. Blocked prompts and
// safety-stopped candidates without content report FinishReasonBlocked.
func fromResponse(resp *genai.GenerateContentResponse) model.Response {
	out := model.Response{
		Content:      core.Content{Role: "assistant"},
		FinishReason: model.FinishReasonStop,
	}

	if resp == nil {
		return out
	}

	out.ID = resp.ResponseID

	if u := resp.UsageMetadata; u != nil {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" {
		out.FinishReason = model.FinishReasonBlocked
		out.BlockReason = string(pf.BlockReason)
		if pf.BlockReasonMessage != "" {
			out.BlockReason = pf.BlockReasonMessage
		}

		return out
	}

	if len(resp.Candidates) == 0 {
		return out
	}

	cand := resp.Candidates[0]
	if cand.GroundingMetadata != nil {
		out.Grounding = cand.GroundingMetadata
	}

	hasCall := false

	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p == nil || p.Thought {
				continue
			}

			switch {
			case p.FunctionCall != nil:
				args, _ := json.Marshal(p.FunctionCall.Args)
				id := p.FunctionCall.ID
				if id == "" {
					id = core.NewID()
				}

				out.Content.Parts = append(out.Content.Parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        id,
					Name:      p.FunctionCall.Name,
					Arguments: string(args),
				}})
				hasCall = true
			case p.Text != "":
				out.Content.Parts = append(out.Content.Parts, core.TextPart{Text: p.Text})
			}
		}
	}

	switch cand.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent, genai.FinishReasonSPII:
		if len(out.Content.Parts) == 0 {
			out.FinishReason = model.FinishReasonBlocked
			out.BlockReason = string(cand.FinishReason)
			if cand.FinishMessage != "" {
				out.BlockReason = cand.FinishMessage
			}
		}
	case genai.FinishReasonMaxTokens:
		out.FinishReason = model.FinishReasonLength
	default:
		if hasCall {
			out.FinishReason = model.FinishReasonToolCalls
		}
	}

	return out
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:              m.opts.Model,
		Provider:          "gemini",
		SupportsTools:     true,
		SupportsGrounding: true,
	}
}
