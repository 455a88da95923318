// Package session holds the turn history of one query.
package session

import (
	"encoding/json"
	"time"

	"github.com/tailored-agentic-units/toolbench/core/protocol"
)

// Exchange is one verbatim provider request/response pair.
type Exchange struct {
	Round     int             `json:"round"`
	Timestamp time.Time       `json:"timestamp"`
	Request   json.RawMessage `json:"request,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
}

// Session is an append-only turn log plus the raw exchange log for audit.
// A session is owned by a single run; implementations must still be safe for
// concurrent readers.
type Session interface {
	// ID returns the unique session identifier.
	ID() string
	// Append adds a turn to the end of the history.
	Append(turn protocol.Turn)
	// Turns returns a defensive copy of the history.
	Turns() []protocol.Turn
	// Record appends a provider exchange to the audit log.
	Record(ex Exchange)
	// Exchanges returns a defensive copy of the audit log.
	Exchanges() []Exchange
}
