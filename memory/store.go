// Package memory persists named byte entries for the harness: context notes
// folded into the system prompt, and the per-run files written by the bench
// harness. Keys are /-separated relative paths.
package memory

import "context"

// Store reads and writes entries in external storage. Implementations do no
// caching; every call performs I/O.
type Store interface {
	// List returns every key in the store, sorted.
	List(ctx context.Context) ([]string, error)
	// Load retrieves entries for the given keys, in order.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save writes entries, creating or overwriting as needed.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes entries. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}
