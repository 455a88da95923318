package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailored-agentic-units/toolbench/agent"
	"github.com/tailored-agentic-units/toolbench/agent/providers/openai"
	"github.com/tailored-agentic-units/toolbench/core/protocol"
)

type captured struct {
	auth string
	body map[string]any
}

func server(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		c.auth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &c.body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newAgent(t *testing.T, baseURL string) *openai.Agent {
	t.Helper()
	a, err := openai.New(agent.Config{
		Model:     "gpt-4o",
		BaseURL:   baseURL + "/v1",
		APIKey:    "sk-test",
		MaxTokens: 256,
		Options:   map[string]any{"temperature": 0},
	}, nil)
	require.NoError(t, err)
	return a
}

var queryTool = protocol.Tool{
	Name:        "query_data",
	Description: "Run SQL",
	Parameters: map[string]any{
		"type":       "object",
		"properties": map[string]any{"sql": map[string]any{"type": "string"}},
		"required":   []any{"sql"},
	},
}

func TestSend_TextReply(t *testing.T) {
	srv, c := server(t, http.StatusOK,
		`{"model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"4"}}],"usage":{"prompt_tokens":5,"total_tokens":6}}`)
	a := newAgent(t, srv.URL)

	reply, err := a.Send(context.Background(), &agent.Request{
		Turns: []protocol.Turn{protocol.NewUserTurn("What is 2+2?")},
	})
	require.NoError(t, err)

	assert.Equal(t, "4", reply.Text)
	assert.Empty(t, reply.ToolCalls)
	assert.Equal(t, 6, reply.Usage.TotalTokens)
	assert.Equal(t, "Bearer sk-test", c.auth)
	assert.Equal(t, "gpt-4o", c.body["model"])
	assert.EqualValues(t, 256, c.body["max_completion_tokens"])
	assert.EqualValues(t, 0, c.body["temperature"])
	assert.NotContains(t, c.body, "tools")
	assert.JSONEq(t, string(reply.RawRequest), mustJSON(t, c.body))
}

func TestSend_ToolCalls(t *testing.T) {
	srv, c := server(t, http.StatusOK, `{
		"model": "gpt-4o",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": null, "tool_calls": [
			{"id": "call_a", "type": "function", "function": {"name": "query_data", "arguments": "{\"sql\":\"select 1\"}"}},
			{"id": "call_b", "type": "function", "function": {"name": "query_data", "arguments": "{bad"}}
		]}}]
	}`)
	a := newAgent(t, srv.URL)

	reply, err := a.Send(context.Background(), &agent.Request{
		Turns: []protocol.Turn{protocol.NewUserTurn("count projects")},
		Tools: []protocol.Tool{queryTool},
	})
	require.NoError(t, err)

	require.Len(t, reply.ToolCalls, 2)
	assert.Equal(t, protocol.NewToolCall("call_a", "query_data", `{"sql":"select 1"}`), reply.ToolCalls[0])
	assert.Equal(t, "{bad", reply.ToolCalls[1].Arguments, "malformed arguments pass through")

	tools := c.body["tools"].([]any)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, "function", tool["type"])
	assert.Equal(t, "query_data", tool["function"].(map[string]any)["name"])
}

func TestSend_ReplaysHistory(t *testing.T) {
	srv, c := server(t, http.StatusOK,
		`{"model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"Two projects."}}]}`)
	a := newAgent(t, srv.URL)

	call := protocol.NewToolCall("call_a", "query_data", `{"sql":"select count(*) from projects"}`)
	_, err := a.Send(context.Background(), &agent.Request{
		System: "Use SQL.",
		Turns: []protocol.Turn{
			protocol.NewUserTurn("How many projects?"),
			protocol.NewAssistantTurn("", []protocol.ToolCall{call}),
			protocol.NewToolResultTurn([]protocol.ToolOutcome{
				{CallID: "call_a", Name: "query_data", OK: true, Payload: json.RawMessage(`[{"n":2}]`)},
			}),
		},
	})
	require.NoError(t, err)

	msgs := c.body["messages"].([]any)
	require.Len(t, msgs, 4)

	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.(map[string]any)["role"].(string)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "tool"}, roles)

	assistant := msgs[2].(map[string]any)
	assert.Nil(t, assistant["content"])
	calls := assistant["tool_calls"].([]any)
	assert.Equal(t, "call_a", calls[0].(map[string]any)["id"])

	tool := msgs[3].(map[string]any)
	assert.Equal(t, "call_a", tool["tool_call_id"])
	assert.Equal(t, `[{"n":2}]`, tool["content"])
}

func TestSend_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"overloaded"}}`},
		{"rate limited", http.StatusTooManyRequests, `{}`},
		{"invalid json", http.StatusOK, `{not json`},
		{"no choices", http.StatusOK, `{"model":"gpt-4o","choices":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := server(t, tt.status, tt.reply)
			a := newAgent(t, srv.URL)

			_, err := a.Send(context.Background(), &agent.Request{Turns: []protocol.Turn{protocol.NewUserTurn("q")}})
			assert.True(t, errors.Is(err, agent.ErrTransport), "got %v", err)
		})
	}
}

func TestSend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := newAgent(t, url)
	_, err := a.Send(context.Background(), &agent.Request{Turns: []protocol.Turn{protocol.NewUserTurn("q")}})
	assert.ErrorIs(t, err, agent.ErrTransport)
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := openai.New(agent.Config{}, nil)
	assert.ErrorIs(t, err, openai.ErrMissingModel)
}

func TestProviderRegistered(t *testing.T) {
	a, err := agent.New(&agent.Config{Provider: "openai", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "openai:gpt-4o", a.Name())
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestSend_FailureCarriesExchange(t *testing.T) {
	srv, _ := server(t, http.StatusInternalServerError, `{"error":{"message":"overloaded"}}`)
	a := newAgent(t, srv.URL)

	_, err := a.Send(context.Background(), &agent.Request{Turns: []protocol.Turn{protocol.NewUserTurn("q")}})

	var te *agent.TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, http.StatusInternalServerError, te.Status)
	assert.JSONEq(t, `{"error":{"message":"overloaded"}}`, string(te.RawResponse))
	assert.Contains(t, string(te.RawRequest), `"model":"gpt-4o"`)
	assert.Contains(t, err.Error(), "overloaded")
}
