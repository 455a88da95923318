package agent

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTransport marks a network or API failure talking to a backend.
	ErrTransport       = errors.New("provider transport error")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrAgentNotFound   = errors.New("agent not found")
	ErrAgentExists     = errors.New("agent already registered")
	ErrEmptyAgentName  = errors.New("agent name is empty")
	ErrEmptyReply      = errors.New("provider returned no choices")
)

// TransportError is a failed call that still produced wire payloads, such as
// a non-2xx reply. It matches ErrTransport and carries the exchange so it can
// be audited like a successful one.
type TransportError struct {
	Status      int
	RawRequest  json.RawMessage
	RawResponse json.RawMessage
	Err         error
}

// NewTransportError wraps err with the request and response bodies. Bodies
// that are not JSON are kept as JSON strings.
func NewTransportError(status int, request, response []byte, err error) *TransportError {
	return &TransportError{
		Status:      status,
		RawRequest:  RawBody(request),
		RawResponse: RawBody(response),
		Err:         err,
	}
}

func (e *TransportError) Error() string {
	msg := ErrTransport.Error()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

// RawBody returns b as a JSON value: valid JSON is copied verbatim, anything
// else is encoded as a string. Empty input yields nil.
func RawBody(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	if json.Valid(b) {
		return append(json.RawMessage(nil), b...)
	}
	encoded, _ := json.Marshal(string(b))
	return encoded
}
