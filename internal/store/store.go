// Package store presents one uniform record API over two interchangeable
// persistence backends: a gorm-managed SQL engine (SQLite or Postgres) and
// the Supabase PostgREST table API. All backend branching lives here;
// request handlers never inspect which backend is active.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Row is a plain field-to-value mapping for one table row.
type Row map[string]any

// Sentinel errors shared by both backends.
var (
	// ErrNotFound indicates the id resolved to no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("record conflict")
)

// Search describes an optional case-insensitive substring match applied
// across a fixed set of text columns.
type Search struct {
	Term    string
	Columns []string
}

// Query carries optional list constraints. A missing filter key means no
// constraint; a slice filter value becomes an IN match.
type Query struct {
	Filters   map[string]any
	Search    *Search
	OrderBy   string
	Ascending bool
	Limit     int
	Offset    int
}

// Store is the uniform record interface both backends implement.
type Store interface {
	Get(ctx context.Context, table string, id int64) (Row, error)
	List(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, fields Row) (int64, error)
	Update(ctx context.Context, table string, id int64, fields Row) (int64, error)
	Delete(ctx context.Context, table string, id int64) (int64, error)
	Count(ctx context.Context, table string, filters map[string]any) (int64, error)

	// Identity lookups sit on the hot path of every authenticated request.
	UserByUsername(ctx context.Context, username string) (Row, error)
	UserByEmail(ctx context.Context, email string) (Row, error)

	Kind() string
	Ping(ctx context.Context) error
	Close() error
}

// storeError wraps a backend failure with its table for logging. Callers must
// not assume SQL error codes survive the remote backend, so only the message
// is carried.
func storeError(table string, err error) error {
	return fmt.Errorf("store: %s: %w", table, err)
}
