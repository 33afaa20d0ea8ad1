// Package iotdb binds the driver contracts to the Apache IoTDB Go client.
// Tree-dialect factories open classic sessions; table-dialect factories open
// table sessions scoped to one database. Everything above this package is
// client-agnostic.
package iotdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/apache/iotdb-client-go/v2/client"

	"github.com/tsforge/iotdb-mcp/internal/driver"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultQueryTimeout   = 60 * time.Second
)

// Config carries everything needed to open IoTDB sessions.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
	FetchSize int
	Timezone  string
	Dialect   driver.Dialect
}

// Factory dials IoTDB sessions speaking the configured dialect.
type Factory struct {
	config Config
}

// NewFactory creates a Factory. Dialing is deferred to the pool; nothing is
// opened here.
func NewFactory(config Config) *Factory {
	return &Factory{config: config}
}

// Dialect implements driver.Factory.
func (f *Factory) Dialect() driver.Dialect {
	return f.config.Dialect
}

func (f *Factory) clientConfig() *client.Config {
	return &client.Config{
		Host:      f.config.Host,
		Port:      strconv.Itoa(f.config.Port),
		UserName:  f.config.User,
		Password:  f.config.Password,
		Database:  f.config.Database,
		FetchSize: int32(f.config.FetchSize),
		TimeZone:  f.config.Timezone,
	}
}

// Dial implements driver.Factory. The deadline on ctx, when set, bounds the
// connection handshake.
func (f *Factory) Dial(ctx context.Context) (driver.Session, error) {
	timeoutMs := millisUntilDeadline(ctx, defaultConnectTimeout)

	if f.config.Dialect == driver.DialectTable {
		sess, err := client.NewTableSession(f.clientConfig(), false, int(timeoutMs))
		if err != nil {
			return nil, fmt.Errorf("open table session to %s:%d: %w", f.config.Host, f.config.Port, err)
		}
		return &tableSession{sess: sess}, nil
	}

	sess := client.NewSession(f.clientConfig())
	if err := sess.Open(false, int(timeoutMs)); err != nil {
		return nil, fmt.Errorf("open session to %s:%d: %w", f.config.Host, f.config.Port, err)
	}
	return &treeSession{sess: sess}, nil
}

type treeSession struct {
	sess client.Session
}

func (s *treeSession) Execute(ctx context.Context, sql string) (driver.ResultSet, error) {
	timeoutMs := millisUntilDeadline(ctx, defaultQueryTimeout)
	ds, err := s.sess.ExecuteQueryStatement(sql, &timeoutMs)
	if err != nil {
		return nil, err
	}
	return newResultSet(ds), nil
}

func (s *treeSession) Close() error {
	s.sess.Close()
	return nil
}

type tableSession struct {
	sess client.ITableSession
}

func (s *tableSession) Execute(ctx context.Context, sql string) (driver.ResultSet, error) {
	timeoutMs := millisUntilDeadline(ctx, defaultQueryTimeout)
	ds, err := s.sess.ExecuteQueryStatement(sql, &timeoutMs)
	if err != nil {
		return nil, err
	}
	return newResultSet(ds), nil
}

func (s *tableSession) Close() error {
	s.sess.Close()
	return nil
}

// resultSet adapts the client's stepping cursor to the buffered
// HasNext/Next contract by reading one row ahead.
type resultSet struct {
	ds      *client.SessionDataSet
	columns []string

	next   []any
	ready  bool
	done   bool
	err    error
	closed bool
}

func newResultSet(ds *client.SessionDataSet) *resultSet {
	return &resultSet{ds: ds, columns: ds.GetColumnNames()}
}

func (r *resultSet) Columns() []string {
	return r.columns
}

func (r *resultSet) advance() {
	if r.ready || r.done || r.err != nil {
		return
	}
	hasNext, err := r.ds.Next()
	if err != nil {
		r.err = err
		return
	}
	if !hasNext {
		r.done = true
		return
	}
	row := make([]any, len(r.columns))
	for i, name := range r.columns {
		value, err := r.ds.GetObject(name)
		if err != nil {
			r.err = err
			return
		}
		row[i] = value
	}
	r.next = row
	r.ready = true
}

func (r *resultSet) HasNext() bool {
	r.advance()
	return r.ready || r.err != nil
}

func (r *resultSet) Next() ([]any, error) {
	r.advance()
	if r.err != nil {
		err := r.err
		r.err = nil
		r.done = true
		return nil, err
	}
	if !r.ready {
		return nil, fmt.Errorf("no more rows")
	}
	row := r.next
	r.next = nil
	r.ready = false
	return row, nil
}

func (r *resultSet) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.ds.Close()
	return nil
}

// millisUntilDeadline converts a context deadline to the millisecond budget
// the client API expects, falling back when no deadline is set. Returns at
// least 1 so an almost-expired context still surfaces as a remote timeout
// rather than a zero meaning "no limit".
func millisUntilDeadline(ctx context.Context, fallback time.Duration) int64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback.Milliseconds()
	}
	ms := time.Until(deadline).Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}
