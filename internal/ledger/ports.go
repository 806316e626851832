// Package ledger reads and writes month records in a hierarchical store.
//
// The store is addressed by slash separated paths (finance/2024-03/donations)
// and holds JSON values. Collections are written as keyed maps; arrays found
// in imported data are accepted on read and normalized to the same ordered
// form.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
)

// Store is the contract the ledger needs from the backing database.
type Store interface {
	// Get returns the JSON value stored at path. ok is false when nothing is
	// stored there; absence is not an error.
	Get(ctx context.Context, path string) (value json.RawMessage, ok bool, err error)
	// Set replaces the value at path wholesale. A nil value removes it.
	Set(ctx context.Context, path string, value any) error
	// Update writes every path in values or none of them.
	Update(ctx context.Context, values map[string]any) error
	// Push stores value under a fresh, time ordered key inside collection and
	// returns the key.
	Push(ctx context.Context, collection string, value any) (id string, err error)
}

var (
	// ErrStore marks failures of the backing store (connectivity, I/O,
	// permissions). Callers surface it as a retryable condition.
	ErrStore = errors.New("ledger store unavailable")
	// ErrEntryNotFound is returned when an update names an entry id that is
	// not stored for the month.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrInvalidID rejects ids that cannot be used as a path segment.
	ErrInvalidID = errors.New("invalid entry id")
	// ErrCorruptRecord is returned when the stored month is not an object.
	ErrCorruptRecord = errors.New("corrupt month record")
)
