package iotdbmcp

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/tsforge/iotdb-mcp/internal/classify"
	"github.com/tsforge/iotdb-mcp/internal/driver"
	"github.com/tsforge/iotdb-mcp/internal/result"
)

// MetadataQuery executes one of the SHOW/COUNT metadata statements against a
// tree-dialect server and returns the drained result as delimited text.
// Allowed prefixes: SHOW DATABASES, SHOW TIMESERIES, SHOW CHILD PATHS, SHOW
// CHILD NODES, SHOW DEVICES, COUNT TIMESERIES, COUNT NODES, COUNT DEVICES.
func (m *IoTDBMcp) MetadataQuery(ctx context.Context, sql string) (*QueryResult, error) {
	return m.runQuery(ctx, "metadata_query", driver.DialectTree, sql,
		classify.Set{classify.MetadataShow})
}

// SelectQuery executes a SELECT statement against a tree-dialect server and
// returns the drained result as delimited text.
func (m *IoTDBMcp) SelectQuery(ctx context.Context, sql string) (*QueryResult, error) {
	return m.runQuery(ctx, "select_query", driver.DialectTree, sql,
		classify.Set{classify.TreeSelect})
}

// ReadQuery executes a SELECT, DESCRIBE/DESC, or SHOW statement against a
// table-dialect server and returns the drained result as delimited text.
func (m *IoTDBMcp) ReadQuery(ctx context.Context, sql string) (*QueryResult, error) {
	return m.runQuery(ctx, "read_query", driver.DialectTable, sql,
		classify.Set{classify.TableSelect, classify.TableDescribe, classify.TableShow})
}

// runQuery is the pipeline shared by every classified query tool:
// classify, acquire, execute, drain, release, render. The acquired session
// is given back to the pool exactly once on every exit path; a session that
// saw a protocol error is discarded instead of reused.
func (m *IoTDBMcp) runQuery(ctx context.Context, tool string, want driver.Dialect, sql string, allowed classify.Set) (*QueryResult, error) {
	startTime := time.Now()

	// 1. Dialect gate (the other dialect's tools are not registered, but
	// library callers can still reach them)
	if err := m.requireDialect(tool, want); err != nil {
		return nil, m.handleError(tool, err)
	}

	// 2. Check SQL length before any processing
	if len(sql) > m.config.Query.MaxSQLLength {
		return nil, m.handleError(tool, fmt.Errorf("statement too long: %d bytes exceeds maximum of %d bytes", len(sql), m.config.Query.MaxSQLLength))
	}

	// 3. Classify against the tool's allowlist; rejected statements never
	// touch the pool
	class, err := classify.Classify(sql, allowed)
	if err != nil {
		return nil, m.handleError(tool, err)
	}

	// 4. Determine timeout
	queryTimeout, timeoutRule := m.timeouts.Resolve(sql)
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// 5. Acquire a session and execute
	conn, err := m.pool.Acquire(queryCtx)
	if err != nil {
		return nil, m.handleError(tool, err)
	}
	defer conn.Release()

	rs, err := conn.Session().Execute(queryCtx, sql)
	if err != nil {
		conn.Discard()
		return nil, m.handleError(tool, fmt.Errorf("query failed: %w", err))
	}

	// 6. Drain the cursor; Drain closes it exactly once either way
	table, err := result.Drain(rs)
	if err != nil {
		conn.Discard()
		return nil, m.handleError(tool, fmt.Errorf("failed reading result rows: %w", err))
	}

	// 7. Apply sanitization
	sanitized := m.sanitizer.HasRules()
	if sanitized {
		table.Transform(m.sanitizer.Value)
	}

	// 8. Render and enforce max result length
	text := table.Text()
	if utf8.RuneCountInString(text) > m.config.Query.MaxResultLength {
		return nil, m.handleError(tool, fmt.Errorf("result too long: %d characters exceeds maximum of %d, add LIMIT or narrow the selected paths", utf8.RuneCountInString(text), m.config.Query.MaxResultLength))
	}

	// 9. Log successful execution with pipeline details
	logEvent := m.logger.Info().
		Str("tool", tool).
		Str("sql", truncateForLog(sql, 200)).
		Str("class", class.String()).
		Dur("duration", time.Since(startTime)).
		Int("row_count", table.Len())
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if sanitized {
		logEvent = logEvent.Bool("sanitized", true)
	}
	logEvent.Msg("query executed")

	return &QueryResult{
		Columns:  table.Columns(),
		RowCount: table.Len(),
		Text:     text,
	}, nil
}

// requireDialect checks the engine serves the dialect a tool belongs to.
func (m *IoTDBMcp) requireDialect(tool string, want driver.Dialect) error {
	if m.dialect != want {
		return fmt.Errorf("%w: %s requires the %s dialect, server is configured for %s", ErrDialectMismatch, tool, want, m.dialect)
	}
	return nil
}

// handleError logs an error once at the dispatch layer and appends any
// matching error hint messages before returning it to the caller. The
// original error stays matchable through errors.Is.
func (m *IoTDBMcp) handleError(tool string, err error) error {
	errMsg := err.Error()
	hint := m.hinter.Hint(errMsg)
	patterns := m.hinter.Patterns(errMsg)

	logEvent := m.logger.Error().Err(err).Str("tool", tool)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("error_hints", patterns)
	}
	logEvent.Msg("tool error")

	if hint != "" {
		return fmt.Errorf("%w\n\n%s", err, hint)
	}
	return err
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
