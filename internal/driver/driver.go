// Package driver defines the session and cursor contracts the rest of the
// engine is written against. The real IoTDB binding lives in the iotdb
// subpackage; tests substitute in-memory implementations.
package driver

import (
	"context"
	"fmt"
)

// Dialect selects which SQL surface a session speaks.
type Dialect int

const (
	// DialectTree is the classic path-based model (root.db.device.sensor).
	DialectTree Dialect = iota
	// DialectTable is the relational model introduced with IoTDB 2.x.
	DialectTable
)

// String returns the dialect's config spelling.
func (d Dialect) String() string {
	switch d {
	case DialectTree:
		return "tree"
	case DialectTable:
		return "table"
	default:
		return fmt.Sprintf("Dialect(%d)", int(d))
	}
}

// ParseDialect parses a config dialect string.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "tree", "":
		return DialectTree, nil
	case "table":
		return DialectTable, nil
	default:
		return DialectTree, fmt.Errorf("unknown sql dialect %q (want tree or table)", s)
	}
}

// ResultSet is a lazy, forward-only cursor over one query's rows.
// It supports a single pass: once a row has been returned by Next it
// cannot be revisited. Close must be called exactly once and releases the
// server-side result resources; it does not touch the owning session.
type ResultSet interface {
	// Columns returns the result column names in wire order. Names are not
	// guaranteed unique. For tree-dialect time series queries the first
	// column is "Time".
	Columns() []string

	// HasNext reports whether Next will yield another row or a pending
	// read error.
	HasNext() bool

	// Next returns the next row's values in column order.
	Next() ([]any, error)

	// Close releases the cursor. Safe to call after a read error.
	Close() error
}

// Session is one live, authenticated database connection. A Session is not
// safe for concurrent use; the pool hands each one to a single caller at a
// time.
type Session interface {
	// Execute runs one statement and returns its cursor. The deadline on
	// ctx, when set, bounds the remote execution.
	Execute(ctx context.Context, sql string) (ResultSet, error)

	// Close terminates the connection. Safe to call on a broken session.
	Close() error
}

// Factory dials new sessions on behalf of a pool.
type Factory interface {
	// Dialect reports which SQL surface dialed sessions speak.
	Dialect() Dialect

	// Dial opens and authenticates one session. The deadline on ctx, when
	// set, bounds the connection attempt.
	Dial(ctx context.Context) (Session, error)
}
