// Package bedrock implements model.Model for Anthropic Claude models served
// by Amazon Bedrock (InvokeModel with the Anthropic messages body).
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
	"github.com/hupe1980/tripmesh/model/anthropic"
)

const anthropicVersion = "bedrock-2023-05-31"

// DefaultModel is the Bedrock model id used when none is configured.
const DefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

// API is the subset of the bedrockruntime client used by Model.
type API interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Options configures the Bedrock adapter.
type Options struct {
	Model       string
	Region      string
	Temperature float64
	MaxTokens   int64
}

// Model wraps Bedrock InvokeModel behind the generic model.Model interface.
type Model struct {
	client API
	opts   Options
}

// NewModel loads the default AWS configuration (credential chain) and
// creates a Bedrock runtime client.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for Bedrock (region: %s): %w", opts.Region, err)
	}

	return &Model{client: bedrockruntime.NewFromConfig(awsCfg), opts: opts}, nil
}

// NewModelFromClient creates a Model from an existing client.
func NewModelFromClient(client API, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       DefaultModel,
		Region:      "us-east-1",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

type requestBody struct {
	AnthropicVersion string                        `json:"anthropic_version"`
	MaxTokens        int64                         `json:"max_tokens"`
	Temperature      float64                       `json:"temperature"`
	System           string                        `json:"system,omitempty"`
	Messages         []sdkanthropic.MessageParam   `json:"messages"`
	Tools            []sdkanthropic.ToolUnionParam `json:"tools,omitempty"`
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		body := requestBody{
			AnthropicVersion: anthropicVersion,
			MaxTokens:        m.opts.MaxTokens,
			Temperature:      m.opts.Temperature,
			System:           anthropic.SystemText(req),
			Messages:         anthropic.BuildMessages(req.Contents),
		}

		if len(req.Tools) > 0 {
			body.Tools = anthropic.BuildTools(req.Tools)
		}

		raw, err := json.Marshal(body)
		if err != nil {
			errCh <- fmt.Errorf("failed to marshal request: %w", err)
			return
		}

		output, err := m.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(m.opts.Model),
			Body:        raw,
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
		})
		if err != nil {
			errCh <- fmt.Errorf("bedrock API error: %w", err)
			return
		}

		resp, err := parseResponse(output.Body)
		if err != nil {
			errCh <- err
			return
		}

		out <- resp
	}()

	return out, errCh
}

type responseBody struct {
	ID         string `json:"id"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		ID    string          `json:"id,omitempty"`
		Name  string          `json:"name,omitempty"`
		Input json.RawMessage `json:"input,omitempty"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func parseResponse(raw []byte) (model.Response, error) {
	var rb responseBody
	if err := json.Unmarshal(raw, &rb); err != nil {
		return model.Response{}, fmt.Errorf("failed to parse response: %w", err)
	}

	var parts []core.Part

	for _, block := range rb.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				parts = append(parts, core.TextPart{Text: block.Text})
			}
		case "tool_use":
			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			}})
		}
	}

	return model.Response{
		ID:           rb.ID,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: anthropic.NormalizeStopReason(rb.StopReason, len(parts) == 0),
		Usage: &model.TokenUsage{
			PromptTokens:     rb.Usage.InputTokens,
			CompletionTokens: rb.Usage.OutputTokens,
			TotalTokens:      rb.Usage.InputTokens + rb.Usage.OutputTokens,
		},
	}, nil
}

// Info returns metadata describing this Bedrock model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "bedrock",
		SupportsTools: true,
	}
}
