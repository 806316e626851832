package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"masjid/internal/ledger"
	"masjid/internal/log"

	_ "modernc.org/sqlite"
)

// emptyObject marks an object with no children so that it survives a
// round trip.
const emptyObject = "{}"

// TreeStore keeps the ledger tree in SQLite, one row per leaf value.
type TreeStore struct {
	db *sql.DB
}

var _ ledger.Store = (*TreeStore)(nil)

func NewTreeStore(dbPath string) (*TreeStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &TreeStore{db: db}, nil
}

func (s *TreeStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *TreeStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *TreeStore) Get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	segs := ledger.SplitPath(path)
	if len(segs) == 0 {
		return nil, false, fmt.Errorf("get: empty path")
	}
	p := ledger.JoinPath(segs...)
	prefix, upper := subtree(p)

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, value FROM nodes WHERE path = ? OR (path >= ? AND path < ?) ORDER BY path`,
		p, prefix, upper)
	if err != nil {
		return nil, false, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var (
		leaf     json.RawMessage
		children = map[string]any{}
		found    bool
	)
	for rows.Next() {
		var np, value string
		if err := rows.Scan(&np, &value); err != nil {
			return nil, false, fmt.Errorf("scan node: %w", err)
		}
		found = true
		if np == p {
			leaf = json.RawMessage(value)
			continue
		}
		insert(children, ledger.SplitPath(strings.TrimPrefix(np, prefix)), json.RawMessage(value))
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate nodes: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	if len(children) == 0 {
		return leaf, true, nil
	}
	b, err := json.Marshal(children)
	if err != nil {
		return nil, false, fmt.Errorf("encode subtree: %w", err)
	}
	return b, true, nil
}

// subtree returns the half-open range [prefix, upper) holding every path
// below p. Paths compare bytewise in both Go and SQLite's BINARY collation,
// and '0' is the byte after '/'.
func subtree(p string) (prefix, upper string) {
	return p + "/", p + "0"
}

func insert(node map[string]any, segs []string, value json.RawMessage) {
	for i, seg := range segs {
		if i == len(segs)-1 {
			if string(value) == emptyObject {
				if _, ok := node[seg].(map[string]any); ok {
					return
				}
				node[seg] = map[string]any{}
				return
			}
			node[seg] = value
			return
		}
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[seg] = child
		}
		node = child
	}
}

func (s *TreeStore) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

// Update applies every write in one transaction.
func (s *TreeStore) Update(ctx context.Context, values map[string]any) error {
	type write struct {
		path   string
		leaves map[string]string
	}
	writes := make([]write, 0, len(values))
	for path, value := range values {
		segs := ledger.SplitPath(path)
		if len(segs) == 0 {
			return fmt.Errorf("update: empty path")
		}
		leaves, err := flatten(ledger.JoinPath(segs...), value)
		if err != nil {
			return fmt.Errorf("update %s: %w", path, err)
		}
		writes = append(writes, write{path: ledger.JoinPath(segs...), leaves: leaves})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, w := range writes {
		prefix, upper := subtree(w.path)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM nodes WHERE path = ? OR (path >= ? AND path < ?)`,
			w.path, prefix, upper); err != nil {
			return fmt.Errorf("clear %s: %w", w.path, err)
		}
		// A scalar or empty-object marker above the written path would shadow it.
		segs := ledger.SplitPath(w.path)
		for i := 1; i < len(segs); i++ {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM nodes WHERE path = ?`, ledger.JoinPath(segs[:i]...)); err != nil {
				return fmt.Errorf("clear ancestor of %s: %w", w.path, err)
			}
		}
		for p, v := range w.leaves {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO nodes (path, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
				p, v); err != nil {
				return fmt.Errorf("insert %s: %w", p, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Tree updated",
		log.FieldComponent, log.ComponentStorage,
		"paths", len(writes))
	return nil
}

func (s *TreeStore) Push(ctx context.Context, collection string, value any) (string, error) {
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

// flatten encodes value and returns its leaves keyed by full path. Arrays
// become index keyed objects; nulls are dropped.
func flatten(path string, value any) (map[string]string, error) {
	out := map[string]string{}
	if value == nil {
		return out, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if err := walk(out, path, v); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(out map[string]string, path string, v any) error {
	switch n := v.(type) {
	case nil:
		return nil
	case map[string]any:
		if len(n) == 0 {
			out[path] = emptyObject
			return nil
		}
		for k, child := range n {
			if !ledger.ValidSegment(k) {
				return fmt.Errorf("invalid key %q", k)
			}
			if err := walk(out, path+"/"+k, child); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if len(n) == 0 {
			out[path] = emptyObject
			return nil
		}
		for i, child := range n {
			if err := walk(out, path+"/"+strconv.Itoa(i), child); err != nil {
				return err
			}
		}
		return nil
	default:
		b, err := json.Marshal(n)
		if err != nil {
			return err
		}
		out[path] = string(b)
		return nil
	}
}
