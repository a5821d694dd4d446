package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*bedrockruntime.InvokeModelOutput)
	return out, args.Error(1)
}

func collect(out <-chan model.Response, errs <-chan error) ([]model.Response, error) {
	var rs []model.Response
	for r := range out {
		rs = append(rs, r)
	}
	return rs, <-errs
}

func TestGenerate_BuildsAnthropicBody(t *testing.T) {
	api := &mockAPI{}

	api.On("InvokeModel", mock.Anything, mock.MatchedBy(func(in *bedrockruntime.InvokeModelInput) bool {
		var body map[string]any
		if err := json.Unmarshal(in.Body, &body); err != nil {
			return false
		}

		msgs, _ := body["messages"].([]any)

		return aws.ToString(in.ModelId) == DefaultModel &&
			body["anthropic_version"] == "bedrock-2023-05-31" &&
			body["system"] == "plan trips" &&
			len(msgs) == 1
	})).Return(&bedrockruntime.InvokeModelOutput{Body: []byte(`{
		"id": "msg_1",
		"stop_reason": "tool_use",
		"content": [
			{"type": "text", "text": "Let me check."},
			{"type": "tool_use", "id": "tu_1", "name": "activities_agent", "input": {"request": "Rome"}}
		],
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)}, nil)

	m := NewModelFromClient(api)
	rs, err := collect(m.Generate(context.Background(), model.Request{
		Instructions: "plan trips",
		Contents:     []core.Content{core.NewTextContent("user", "Rome")},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name:       "activities_agent",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{"request": map[string]any{"type": "string"}}},
		}}},
	}))
	require.NoError(t, err)
	require.Len(t, rs, 1)

	r := rs[0]
	assert.Equal(t, model.FinishReasonToolCalls, r.FinishReason)
	assert.Equal(t, 15, r.Usage.TotalTokens)
	require.Len(t, r.Content.Parts, 2)

	call := r.Content.Parts[1].(core.FunctionCallPart)
	assert.Equal(t, "tu_1", call.FunctionCall.ID)
	assert.JSONEq(t, `{"request":"Rome"}`, call.FunctionCall.Arguments)
	api.AssertExpectations(t)
}

func TestGenerate_Error(t *testing.T) {
	api := &mockAPI{}
	boom := errors.New("throttled")
	api.On("InvokeModel", mock.Anything, mock.Anything).Return(nil, boom)

	_, err := collect(NewModelFromClient(api).Generate(context.Background(), model.Request{}))
	assert.ErrorIs(t, err, boom)
}

func TestParseResponse_Refusal(t *testing.T) {
	r, err := parseResponse([]byte(`{"stop_reason":"refusal","content":[]}`))
	require.NoError(t, err)
	assert.Equal(t, model.FinishReasonBlocked, r.FinishReason)
}
