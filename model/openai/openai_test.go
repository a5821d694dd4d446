package openai

import (
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/model"
)

func TestToMessages_OrderAndRoles(t *testing.T) {
	req := model.Request{
		Instructions: "system prompt",
		Contents: []core.Content{
			core.NewTextContent("user", "Plan Rome"),
			{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID: "c1", Name: "inspiration_agent", Arguments: `{"request":"Rome"}`,
			}}}},
			{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
				ID: "c1", Name: "inspiration_agent", Response: "Colosseum",
			}}}},
			core.NewTextContent("assistant", "Day 1"),
		},
	}

	msgs := toMessages(req)
	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestFromCompletion(t *testing.T) {
	resp := &openai.ChatCompletion{
		ID: "cmpl-1",
		Choices: []openai.ChatCompletionChoice{{
			FinishReason: "tool_calls",
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ChatCompletionMessageToolCall{{
					ID:       "call-1",
					Function: openai.ChatCompletionMessageToolCallFunction{Name: "itinerary_agent", Arguments: `{"request":"x"}`},
				}},
			},
		}},
		Usage: openai.CompletionUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
	}

	r, err := fromCompletion(resp)
	require.NoError(t, err)
	assert.Equal(t, model.FinishReasonToolCalls, r.FinishReason)
	assert.Equal(t, 3, r.Usage.TotalTokens)

	call, ok := r.Content.Parts[0].(core.FunctionCallPart)
	require.True(t, ok)
	assert.Equal(t, "itinerary_agent", call.FunctionCall.Name)

	_, err = fromCompletion(&openai.ChatCompletion{})
	assert.Error(t, err)
}

func TestNormalizeFinish(t *testing.T) {
	assert.Equal(t, model.FinishReasonBlocked, normalizeFinish("content_filter", true))
	assert.Equal(t, model.FinishReasonStop, normalizeFinish("content_filter", false))
	assert.Equal(t, model.FinishReasonLength, normalizeFinish("length", false))
	assert.Equal(t, model.FinishReasonStop, normalizeFinish("stop", false))
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "gpt-4o"; o.APIKey = "test" })
	assert.Equal(t, "gpt-4o", m.Info().Name)
	assert.False(t, m.Info().SupportsGrounding)
}
