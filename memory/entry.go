package memory

import (
	"encoding/json"
	"fmt"
)

// Entry is a key and its raw value.
type Entry struct {
	Key   string
	Value []byte
}

// TextEntry wraps a string value.
func TextEntry(key, text string) Entry {
	return Entry{Key: key, Value: []byte(text)}
}

// JSONEntry encodes v as indented JSON.
func JSONEntry(key string, v any) (Entry, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	return Entry{Key: key, Value: data}, nil
}
