package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/tailored-agentic-units/toolbench/core/protocol"
)

func TestToolCall_MarshalJSON(t *testing.T) {
	tc := protocol.NewToolCall("call_1", "query_data", `{"sql":"select 1"}`)

	data, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if wire["type"] != "function" {
		t.Errorf("got type %v, want function", wire["type"])
	}
	fn, ok := wire["function"].(map[string]any)
	if !ok {
		t.Fatalf("function field missing: %s", data)
	}
	if fn["name"] != "query_data" {
		t.Errorf("got name %v, want query_data", fn["name"])
	}
	if fn["arguments"] != `{"sql":"select 1"}` {
		t.Errorf("got arguments %v", fn["arguments"])
	}
}

func TestToolCall_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		data string
		want protocol.ToolCall
	}{
		{
			name: "nested",
			data: `{"id":"a","type":"function","function":{"name":"run_code","arguments":"{}"}}`,
			want: protocol.NewToolCall("a", "run_code", "{}"),
		},
		{
			name: "flat",
			data: `{"id":"b","name":"query_data","arguments":"{\"sql\":\"x\"}"}`,
			want: protocol.NewToolCall("b", "query_data", `{"sql":"x"}`),
		},
		{
			name: "malformed arguments kept verbatim",
			data: `{"id":"c","function":{"name":"query_data","arguments":"{not json"}}`,
			want: protocol.NewToolCall("c", "query_data", "{not json"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got protocol.ToolCall
			if err := json.Unmarshal([]byte(tt.data), &got); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTool_PropertiesAndRequired(t *testing.T) {
	tool := protocol.Tool{
		Name: "query_data",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sql": map[string]any{"type": "string"},
			},
			"required": []any{"sql"},
		},
	}

	if _, ok := tool.Properties()["sql"]; !ok {
		t.Error("expected sql property")
	}
	req := tool.Required()
	if len(req) != 1 || req[0] != "sql" {
		t.Errorf("got required %v, want [sql]", req)
	}

	empty := protocol.Tool{Name: "noop"}
	if len(empty.Properties()) != 0 {
		t.Error("expected empty properties")
	}
	if empty.Required() != nil {
		t.Error("expected nil required")
	}
}

func TestTurn_HasToolCalls(t *testing.T) {
	call := protocol.NewToolCall("1", "query_data", "{}")

	tests := []struct {
		name string
		turn protocol.Turn
		want bool
	}{
		{"user", protocol.NewUserTurn("hi"), false},
		{"assistant text", protocol.NewAssistantTurn("done", nil), false},
		{"assistant calls", protocol.NewAssistantTurn("", []protocol.ToolCall{call}), true},
		{"tool result", protocol.NewToolResultTurn(nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.turn.HasToolCalls(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateTurns(t *testing.T) {
	a := protocol.NewToolCall("a", "query_data", "{}")
	b := protocol.NewToolCall("b", "run_code", "{}")
	ok := func(id string) protocol.ToolOutcome {
		return protocol.ToolOutcome{CallID: id, OK: true, Payload: json.RawMessage(`[]`)}
	}

	tests := []struct {
		name    string
		turns   []protocol.Turn
		wantErr bool
	}{
		{
			name: "paired",
			turns: []protocol.Turn{
				protocol.NewUserTurn("q"),
				protocol.NewAssistantTurn("", []protocol.ToolCall{a, b}),
				protocol.NewToolResultTurn([]protocol.ToolOutcome{ok("a"), ok("b")}),
				protocol.NewAssistantTurn("answer", nil),
			},
		},
		{
			name: "orphan result",
			turns: []protocol.Turn{
				protocol.NewUserTurn("q"),
				protocol.NewToolResultTurn([]protocol.ToolOutcome{ok("a")}),
			},
			wantErr: true,
		},
		{
			name: "count mismatch",
			turns: []protocol.Turn{
				protocol.NewAssistantTurn("", []protocol.ToolCall{a, b}),
				protocol.NewToolResultTurn([]protocol.ToolOutcome{ok("a")}),
			},
			wantErr: true,
		},
		{
			name: "order mismatch",
			turns: []protocol.Turn{
				protocol.NewAssistantTurn("", []protocol.ToolCall{a, b}),
				protocol.NewToolResultTurn([]protocol.ToolOutcome{ok("b"), ok("a")}),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := protocol.ValidateTurns(tt.turns)
			if tt.wantErr {
				if !errors.Is(err, protocol.ErrTurnSequence) {
					t.Errorf("got %v, want ErrTurnSequence", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestErrorPayload(t *testing.T) {
	var got map[string]string
	if err := json.Unmarshal(protocol.ErrorPayload(`bad "quote"`), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got["error"] != `bad "quote"` {
		t.Errorf("got %q", got["error"])
	}
}

func TestNewTableArtifact(t *testing.T) {
	art := protocol.NewTableArtifact("orders", "Orders", []map[string]any{{"id": 1}})

	if art.Type != "table" {
		t.Errorf("got type %q, want table", art.Type)
	}
	rows, ok := art.Data.([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("got data %#v", art.Data)
	}

	data, err := json.Marshal(art)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var wire map[string]any
	json.Unmarshal(data, &wire)
	if wire["artifact_type"] != "table" {
		t.Errorf("got artifact_type %v", wire["artifact_type"])
	}
}
