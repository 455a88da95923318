package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrTurnSequence reports a turn history that breaks the tool pairing rules.
var ErrTurnSequence = errors.New("invalid turn sequence")

// TurnKind tags the variant held by a Turn.
type TurnKind string

const (
	TurnUser       TurnKind = "user"
	TurnAssistant  TurnKind = "assistant"
	TurnToolResult TurnKind = "tool_result"
)

// ToolOutcome is the result of one ToolCall. Outcomes are always produced,
// including for unknown tools and failed executions; failure is carried by
// OK=false and an {"error": "..."} payload.
type ToolOutcome struct {
	CallID  string          `json:"call_id"`
	Name    string          `json:"name"`
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorPayload encodes msg as an {"error": msg} outcome payload.
func ErrorPayload(msg string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return data
}

// Turn is one unit of a session's history. Exactly one variant is populated,
// selected by Kind:
//
//   - TurnUser: Text
//   - TurnAssistant: Text, ToolCalls and any Artifacts the backend modified
//   - TurnToolResult: Outcomes, one per ToolCall of the preceding assistant turn
type Turn struct {
	Kind      TurnKind      `json:"kind"`
	Text      string        `json:"text,omitempty"`
	ToolCalls []ToolCall    `json:"tool_calls,omitempty"`
	Outcomes  []ToolOutcome `json:"outcomes,omitempty"`
	Artifacts []Artifact    `json:"modified_artifacts,omitempty"`
}

func NewUserTurn(text string) Turn {
	return Turn{Kind: TurnUser, Text: text}
}

func NewAssistantTurn(text string, calls []ToolCall) Turn {
	return Turn{Kind: TurnAssistant, Text: text, ToolCalls: calls}
}

func NewToolResultTurn(outcomes []ToolOutcome) Turn {
	return Turn{Kind: TurnToolResult, Outcomes: outcomes}
}

// HasToolCalls reports whether the turn is an assistant turn requesting tools.
func (t Turn) HasToolCalls() bool {
	return t.Kind == TurnAssistant && len(t.ToolCalls) > 0
}

// ValidateTurns checks that every tool result turn directly follows an
// assistant turn with tool calls and answers each call once, in order.
func ValidateTurns(turns []Turn) error {
	for i, turn := range turns {
		if turn.Kind != TurnToolResult {
			continue
		}
		if i == 0 || !turns[i-1].HasToolCalls() {
			return fmt.Errorf("%w: turn %d has no preceding tool calls", ErrTurnSequence, i)
		}
		calls := turns[i-1].ToolCalls
		if len(calls) != len(turn.Outcomes) {
			return fmt.Errorf("%w: turn %d has %d outcomes for %d calls", ErrTurnSequence, i, len(turn.Outcomes), len(calls))
		}
		for j, call := range calls {
			if turn.Outcomes[j].CallID != call.ID {
				return fmt.Errorf("%w: turn %d outcome %d answers %q, want %q", ErrTurnSequence, i, j, turn.Outcomes[j].CallID, call.ID)
			}
		}
	}
	return nil
}
