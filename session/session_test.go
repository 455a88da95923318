package session_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/tailored-agentic-units/toolbench/core/protocol"
	"github.com/tailored-agentic-units/toolbench/session"
)

func TestNew(t *testing.T) {
	s := session.NewMemorySession()

	if s.ID() == "" {
		t.Error("session ID should not be empty")
	}
	if len(s.Turns()) != 0 {
		t.Errorf("new session should have 0 turns, got %d", len(s.Turns()))
	}
	if len(s.Exchanges()) != 0 {
		t.Errorf("new session should have 0 exchanges, got %d", len(s.Exchanges()))
	}
}

func TestSession_ID_Unique(t *testing.T) {
	s1 := session.NewMemorySession()
	s2 := session.NewMemorySession()

	if s1.ID() == s2.ID() {
		t.Errorf("two sessions should have different IDs, both got %q", s1.ID())
	}
}

func TestSession_Append_Order(t *testing.T) {
	s := session.NewMemorySession()
	call := protocol.NewToolCall("call_1", "query_data", `{"sql":"select 1"}`)

	s.Append(protocol.NewUserTurn("How many projects?"))
	s.Append(protocol.NewAssistantTurn("", []protocol.ToolCall{call}))
	s.Append(protocol.NewToolResultTurn([]protocol.ToolOutcome{
		{CallID: "call_1", Name: "query_data", OK: true, Payload: json.RawMessage(`[{"n":2}]`)},
	}))
	s.Append(protocol.NewAssistantTurn("Two.", nil))

	turns := s.Turns()
	want := []protocol.TurnKind{
		protocol.TurnUser,
		protocol.TurnAssistant,
		protocol.TurnToolResult,
		protocol.TurnAssistant,
	}
	if len(turns) != len(want) {
		t.Fatalf("got %d turns, want %d", len(turns), len(want))
	}
	for i, kind := range want {
		if turns[i].Kind != kind {
			t.Errorf("turn %d: got kind %q, want %q", i, turns[i].Kind, kind)
		}
	}
	if turns[2].Outcomes[0].CallID != "call_1" {
		t.Errorf("got call id %q, want %q", turns[2].Outcomes[0].CallID, "call_1")
	}
	if err := protocol.ValidateTurns(turns); err != nil {
		t.Errorf("history should be valid: %v", err)
	}
}

func TestSession_Turns_DefensiveCopy(t *testing.T) {
	s := session.NewMemorySession()
	s.Append(protocol.NewAssistantTurn("", []protocol.ToolCall{
		protocol.NewToolCall("call_1", "original", "{}"),
	}))

	turns := s.Turns()
	turns[0].ToolCalls[0].Name = "tampered"
	turns[0].ToolCalls = append(turns[0].ToolCalls, protocol.NewToolCall("call_2", "extra", "{}"))
	turns = append(turns, protocol.NewUserTurn("extra"))

	original := s.Turns()
	if len(original) != 1 {
		t.Fatalf("got %d turns, want 1", len(original))
	}
	if len(original[0].ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(original[0].ToolCalls))
	}
	if original[0].ToolCalls[0].Name != "original" {
		t.Errorf("tool call name was mutated: got %q, want %q", original[0].ToolCalls[0].Name, "original")
	}
}

func TestSession_Append_CopiesInput(t *testing.T) {
	s := session.NewMemorySession()
	calls := []protocol.ToolCall{protocol.NewToolCall("call_1", "original", "{}")}

	s.Append(protocol.NewAssistantTurn("", calls))
	calls[0].Name = "tampered"

	if got := s.Turns()[0].ToolCalls[0].Name; got != "original" {
		t.Errorf("caller slice aliased session state: got %q", got)
	}
}

func TestSession_Record(t *testing.T) {
	s := session.NewMemorySession()
	now := time.Now()

	s.Record(session.Exchange{Round: 1, Timestamp: now, Request: json.RawMessage(`{"a":1}`), Response: json.RawMessage(`{"b":2}`)})
	s.Record(session.Exchange{Round: 2, Timestamp: now})

	ex := s.Exchanges()
	if len(ex) != 2 {
		t.Fatalf("got %d exchanges, want 2", len(ex))
	}
	if ex[0].Round != 1 || ex[1].Round != 2 {
		t.Errorf("got rounds %d,%d, want 1,2", ex[0].Round, ex[1].Round)
	}
	if string(ex[0].Response) != `{"b":2}` {
		t.Errorf("got response %s", ex[0].Response)
	}
}

func TestSession_Concurrent_AppendAndRead(t *testing.T) {
	s := session.NewMemorySession()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(2 * n)

	for range n {
		go func() {
			defer wg.Done()
			s.Append(protocol.NewUserTurn("msg"))
		}()
		go func() {
			defer wg.Done()
			_ = s.Turns()
		}()
	}
	wg.Wait()

	if got := len(s.Turns()); got != n {
		t.Errorf("got %d turns, want %d", got, n)
	}
}
