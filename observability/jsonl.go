package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONLObserver writes one JSON object per event. It is used for audit
// trails that outlive the process log.
type JSONLObserver struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	err    error
}

type jsonlRecord struct {
	Time   time.Time      `json:"time"`
	Type   EventType      `json:"type"`
	Level  Level          `json:"level"`
	Source string         `json:"source"`
	Data   map[string]any `json:"data,omitempty"`
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	return &JSONLObserver{enc: json.NewEncoder(w)}
}

// OpenJSONL appends events to the file at path, creating it if needed.
func OpenJSONL(path string) (*JSONLObserver, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	o := NewJSONLObserver(f)
	o.closer = f
	return o, nil
}

// OnEvent encodes the event. After the first write failure further events are
// dropped; Err reports the failure.
func (o *JSONLObserver) OnEvent(_ context.Context, event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.err != nil {
		return
	}
	o.err = o.enc.Encode(jsonlRecord{
		Time:   event.Timestamp,
		Type:   event.Type,
		Level:  event.Level,
		Source: event.Source,
		Data:   event.Data,
	})
}

// Err returns the first write error, if any.
func (o *JSONLObserver) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Close closes the underlying file when the observer owns one.
func (o *JSONLObserver) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}
