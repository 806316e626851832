// Package memory is an in-process hierarchical store for development and
// tests. It can be seeded from an exported JSON tree.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"masjid/internal/ledger"
)

type Store struct {
	mu   sync.RWMutex
	root map[string]any
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{root: map[string]any{}}
}

// NewFromFile loads a JSON export. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return NewFromJSON(b)
}

// NewFromJSON loads a JSON tree, translating the legacy layout
// (masjid_finance with jumaon_ka_chanda and kharcha) to the current one.
func NewFromJSON(b []byte) (*Store, error) {
	v, err := decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	root, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode seed: root is not an object")
	}
	return &Store{root: importLegacy(root)}, nil
}

func (s *Store) Get(_ context.Context, path string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := lookup(s.root, ledger.SplitPath(path))
	if !ok || node == nil {
		return nil, false, nil
	}
	b, err := json.Marshal(node)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *Store) Set(_ context.Context, path string, value any) error {
	v, err := normalize(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ledger.SplitPath(path), v)
}

// Update converts every value first so that a bad value leaves the tree
// untouched.
func (s *Store) Update(_ context.Context, values map[string]any) error {
	conv := make(map[string]any, len(values))
	for p, value := range values {
		if len(ledger.SplitPath(p)) == 0 {
			return fmt.Errorf("update: empty path")
		}
		v, err := normalize(value)
		if err != nil {
			return fmt.Errorf("update %s: %w", p, err)
		}
		conv[p] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, v := range conv {
		if err := s.put(ledger.SplitPath(p), v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Push(ctx context.Context, collection string, value any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	key := id.String()
	if err := s.Set(ctx, ledger.JoinPath(collection, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// Snapshot returns the whole tree as JSON.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.MarshalIndent(s.root, "", "  ")
}

func (s *Store) put(segs []string, v any) error {
	if len(segs) == 0 {
		return fmt.Errorf("set: empty path")
	}
	node := s.root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := node[seg]
		child := asObject(next)
		if !ok || child == nil {
			child = map[string]any{}
		}
		node[seg] = child
		node = child
	}
	last := segs[len(segs)-1]
	if v == nil {
		delete(node, last)
		return nil
	}
	node[last] = v
	return nil
}

func lookup(node any, segs []string) (any, bool) {
	for _, seg := range segs {
		switch n := node.(type) {
		case map[string]any:
			child, ok := n[seg]
			if !ok {
				return nil, false
			}
			node = child
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(n) {
				return nil, false
			}
			node = n[i]
		default:
			return nil, false
		}
	}
	return node, true
}

// asObject returns n as an object, turning an array into an index keyed map
// so that writes below it have a stable place to land.
func asObject(n any) map[string]any {
	switch v := n.(type) {
	case map[string]any:
		return v
	case []any:
		out := make(map[string]any, len(v))
		for i, item := range v {
			if item != nil {
				out[strconv.Itoa(i)] = item
			}
		}
		return out
	}
	return nil
}

// normalize round-trips value through JSON so the tree only ever holds
// maps, slices, strings, bools and json.Number.
func normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return decode(b)
}

func decode(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
