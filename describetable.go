package iotdbmcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tsforge/iotdb-mcp/internal/driver"
	"github.com/tsforge/iotdb-mcp/internal/result"
)

// describeTableSQL is the fixed statement template behind DescribeTable.
// The details suffix adds measurement metadata to the column listing.
const describeTableSQL = "DESC %s details"

// DescribeTable returns the column schema of one table as delimited text.
// Table dialect only; the fixed statement template skips classification and
// sanitization.
func (m *IoTDBMcp) DescribeTable(ctx context.Context, table string) (*QueryResult, error) {
	startTime := time.Now()

	if err := m.requireDialect("describe_table", driver.DialectTable); err != nil {
		return nil, m.handleError("describe_table", err)
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, m.handleError("describe_table", fmt.Errorf("table name must be non-empty"))
	}

	// 1. Apply configurable timeout
	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(m.config.Query.DescribeTableTimeoutSeconds)*time.Second)
	defer cancel()

	// 2. Acquire a session and execute
	conn, err := m.pool.Acquire(queryCtx)
	if err != nil {
		return nil, m.handleError("describe_table", err)
	}
	defer conn.Release()

	sql := fmt.Sprintf(describeTableSQL, table)
	rs, err := conn.Session().Execute(queryCtx, sql)
	if err != nil {
		conn.Discard()
		return nil, m.handleError("describe_table", fmt.Errorf("describe %s failed: %w", table, err))
	}

	drained, err := result.Drain(rs)
	if err != nil {
		conn.Discard()
		return nil, m.handleError("describe_table", fmt.Errorf("failed reading schema of %s: %w", table, err))
	}

	m.logger.Info().
		Str("table", table).
		Dur("duration", time.Since(startTime)).
		Int("column_count", drained.Len()).
		Msg("describe_table executed")

	return &QueryResult{
		Columns:  drained.Columns(),
		RowCount: drained.Len(),
		Text:     drained.Text(),
	}, nil
}
