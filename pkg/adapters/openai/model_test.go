package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	adapter "github.com/aretw0/teller/pkg/adapters/openai"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend serves /v1/chat/completions with a fixed message and captures the request.
func backend(t *testing.T, message map[string]any, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		choices := []any{}
		if message != nil {
			choices = append(choices, map[string]any{"index": 0, "message": message, "finish_reason": "stop"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "test-model",
			"choices": choices,
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func newModel(url string) *adapter.Model {
	return adapter.New(adapter.Config{
		APIKey:      "test-key",
		BaseURL:     url + "/v1",
		Model:       "test-model",
		Temperature: 0.5,
		MaxTokens:   2000,
	})
}

func TestComplete_MarkerMode(t *testing.T) {
	var got map[string]any
	ts := backend(t, map[string]any{
		"role":    "assistant",
		"content": "[FUNC_CALL:name=get_balance]",
	}, &got)
	defer ts.Close()

	resp, err := newModel(ts.URL).Complete(context.Background(), domain.ModelRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "You are a banking assistant."},
			{Role: domain.RoleUser, Content: "Канча акча бар?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "[FUNC_CALL:name=get_balance]", resp.Text)
	assert.Empty(t, resp.Calls)

	assert.Equal(t, "test-model", got["model"])
	assert.EqualValues(t, 2000, got["max_tokens"])
	assert.NotContains(t, got, "tools")
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "Канча акча бар?", msgs[1].(map[string]any)["content"])
}

func TestComplete_ToolCalls(t *testing.T) {
	var got map[string]any
	ts := backend(t, map[string]any{
		"role":    "assistant",
		"content": "",
		"tool_calls": []any{
			map[string]any{
				"id":   "call_1",
				"type": "function",
				"function": map[string]any{
					"name":      "transfer_money",
					"arguments": `{"to_name":"Aizada","amount":1000}`,
				},
			},
			map[string]any{
				"id":   "call_2",
				"type": "function",
				"function": map[string]any{
					"name":      "get_balance",
					"arguments": `{not json`,
				},
			},
		},
	}, &got)
	defer ts.Close()

	resp, err := newModel(ts.URL).Complete(context.Background(), domain.ModelRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "send 1000 to Aizada"}},
		Tools: []domain.ToolSpec{{
			Name:        "transfer_money",
			Description: "Transfers money",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"to_name": map[string]any{"type": "string"}},
			},
		}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Calls, 1, "malformed tool calls are discarded")
	assert.Equal(t, "transfer_money", resp.Calls[0].Name)
	assert.Equal(t, "Aizada", resp.Calls[0].Arguments["to_name"])
	assert.Equal(t, json.Number("1000"), resp.Calls[0].Arguments["amount"])

	tools := got["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "transfer_money", fn["name"])
	assert.Equal(t, "auto", got["tool_choice"])
}

func TestComplete_LegacyFunctionCall(t *testing.T) {
	ts := backend(t, map[string]any{
		"role": "assistant",
		"function_call": map[string]any{
			"name":      "get_transactions",
			"arguments": `{"limit":"5"}`,
		},
	}, nil)
	defer ts.Close()

	resp, err := newModel(ts.URL).Complete(context.Background(), domain.ModelRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "last 5"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Calls, 1)
	assert.Equal(t, "get_transactions", resp.Calls[0].Name)
	assert.Equal(t, "5", resp.Calls[0].Arguments["limit"])
}

func TestComplete_Errors(t *testing.T) {
	t.Run("NoChoices", func(t *testing.T) {
		ts := backend(t, nil, nil)
		defer ts.Close()
		_, err := newModel(ts.URL).Complete(context.Background(), domain.ModelRequest{})
		assert.ErrorIs(t, err, adapter.ErrNoChoices)
	})

	t.Run("HTTPError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
		}))
		defer ts.Close()
		_, err := newModel(ts.URL).Complete(context.Background(), domain.ModelRequest{})
		assert.ErrorContains(t, err, "chat completion")
	})
}
