// Package drivertest provides in-memory driver implementations for tests.
// Factories, sessions, and cursors record how they were used (dials,
// executed statements, close counts) so tests can assert on lifecycle
// behavior without a live database.
package drivertest

import (
	"context"
	"errors"
	"sync"

	"github.com/tsforge/iotdb-mcp/internal/driver"
)

// ExecFunc produces the cursor for one executed statement.
type ExecFunc func(sql string) (driver.ResultSet, error)

// ResultSet is an in-memory cursor. Configure failures with FailAt before
// handing it out.
type ResultSet struct {
	columns []string
	rows    [][]any

	pos     int
	failAt  int
	failErr error

	mu     sync.Mutex
	closes int
}

// NewResultSet builds a cursor over the given rows.
func NewResultSet(columns []string, rows [][]any) *ResultSet {
	return &ResultSet{columns: columns, rows: rows, failAt: -1}
}

// FailAt makes Next return err instead of row index i. Returns the receiver
// for chaining.
func (r *ResultSet) FailAt(i int, err error) *ResultSet {
	r.failAt = i
	r.failErr = err
	return r
}

// Columns implements driver.ResultSet.
func (r *ResultSet) Columns() []string { return r.columns }

// HasNext implements driver.ResultSet. A pending injected failure counts as
// a next row so the caller trips over it in Next.
func (r *ResultSet) HasNext() bool {
	if r.failAt >= 0 && r.pos == r.failAt {
		return true
	}
	return r.pos < len(r.rows)
}

// Next implements driver.ResultSet.
func (r *ResultSet) Next() ([]any, error) {
	if r.failAt >= 0 && r.pos == r.failAt {
		return nil, r.failErr
	}
	if r.pos >= len(r.rows) {
		return nil, errors.New("drivertest: Next past end of result set")
	}
	row := r.rows[r.pos]
	r.pos++
	return row, nil
}

// Close implements driver.ResultSet and counts invocations.
func (r *ResultSet) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	return nil
}

// Closes reports how many times Close has been called.
func (r *ResultSet) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// Session is an in-memory driver.Session. It records every executed
// statement and every Close call.
type Session struct {
	exec ExecFunc

	mu       sync.Mutex
	executed []string
	closes   int
}

// Execute implements driver.Session.
func (s *Session) Execute(ctx context.Context, sql string) (driver.ResultSet, error) {
	s.mu.Lock()
	s.executed = append(s.executed, sql)
	exec := s.exec
	s.mu.Unlock()
	if exec == nil {
		return NewResultSet(nil, nil), nil
	}
	return exec(sql)
}

// Close implements driver.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Executed returns the statements run on this session, in order.
func (s *Session) Executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.executed...)
}

// Closes reports how many times Close has been called.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Factory dials fake sessions. Configure the exported fields before first
// use; they must not be changed afterwards.
type Factory struct {
	// DialFailures makes the first n dials fail with DialErr.
	DialFailures int
	// DialErr is the error returned by failing dials.
	DialErr error
	// OnExecute supplies results for statements run on dialed sessions.
	// When nil, every statement yields an empty result set.
	OnExecute ExecFunc
	// Block, when non-nil, is closed-over by Dial: each dial waits for a
	// receive to complete, letting tests hold sessions mid-dial.
	Block chan struct{}

	dialect driver.Dialect

	mu       sync.Mutex
	dials    int
	sessions []*Session
}

// NewFactory builds a Factory for the given dialect.
func NewFactory(dialect driver.Dialect) *Factory {
	return &Factory{dialect: dialect}
}

// Dialect implements driver.Factory.
func (f *Factory) Dialect() driver.Dialect { return f.dialect }

// Dial implements driver.Factory.
func (f *Factory) Dial(ctx context.Context) (driver.Session, error) {
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.dials++
	n := f.dials
	f.mu.Unlock()
	if n <= f.DialFailures {
		err := f.DialErr
		if err == nil {
			err = errors.New("drivertest: dial refused")
		}
		return nil, err
	}
	s := &Session{exec: f.OnExecute}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

// Dials reports how many dial attempts have been made, failures included.
func (f *Factory) Dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

// Sessions returns every session dialed so far.
func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}

// OpenSessions counts dialed sessions that have not been closed.
func (f *Factory) OpenSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	open := 0
	for _, s := range f.sessions {
		if s.Closes() == 0 {
			open++
		}
	}
	return open
}
