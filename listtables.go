package iotdbmcp

import (
	"context"
	"fmt"
	"time"

	"github.com/tsforge/iotdb-mcp/internal/driver"
	"github.com/tsforge/iotdb-mcp/internal/result"
)

const listTablesSQL = "SHOW TABLES"

// ListTables returns every table in the configured database, one name per
// line under a Tables_in_<database> header. Table dialect only; the fixed
// statement skips classification and sanitization.
func (m *IoTDBMcp) ListTables(ctx context.Context) (*QueryResult, error) {
	startTime := time.Now()

	if err := m.requireDialect("list_tables", driver.DialectTable); err != nil {
		return nil, m.handleError("list_tables", err)
	}

	// 1. Apply configurable timeout
	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(m.config.Query.ListTablesTimeoutSeconds)*time.Second)
	defer cancel()

	// 2. Acquire a session and execute
	conn, err := m.pool.Acquire(queryCtx)
	if err != nil {
		return nil, m.handleError("list_tables", err)
	}
	defer conn.Release()

	rs, err := conn.Session().Execute(queryCtx, listTablesSQL)
	if err != nil {
		conn.Discard()
		return nil, m.handleError("list_tables", fmt.Errorf("list tables query failed: %w", err))
	}

	table, err := result.Drain(rs)
	if err != nil {
		conn.Discard()
		return nil, m.handleError("list_tables", fmt.Errorf("failed reading table list: %w", err))
	}

	// 3. Keep the first field of each row under the conventional header
	rows := make([][]any, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		row := table.Row(i)
		if len(row) == 0 {
			continue
		}
		rows = append(rows, []any{row[0]})
	}
	names, err := result.New([]string{"Tables_in_" + m.database}, rows)
	if err != nil {
		return nil, m.handleError("list_tables", err)
	}

	m.logger.Info().
		Dur("duration", time.Since(startTime)).
		Int("table_count", names.Len()).
		Msg("list_tables executed")

	return &QueryResult{
		Columns:  names.Columns(),
		RowCount: names.Len(),
		Text:     names.Text(),
	}, nil
}
