package iotdbmcp

import (
	"context"
	"fmt"
	"time"

	"github.com/tsforge/iotdb-mcp/internal/classify"
	"github.com/tsforge/iotdb-mcp/internal/driver"
	"github.com/tsforge/iotdb-mcp/internal/export"
	"github.com/tsforge/iotdb-mcp/internal/result"
)

// ExportQuery executes a SELECT or metadata SHOW/COUNT statement against a
// tree-dialect server and writes the full result to a file in the export
// directory. format is "csv" or "excel" (empty means csv); filename is
// optional, a collision-resistant name is generated when absent.
func (m *IoTDBMcp) ExportQuery(ctx context.Context, sql, format, filename string) (*ExportResult, error) {
	return m.runExport(ctx, "export_query", driver.DialectTree, sql, format, filename,
		classify.Set{classify.TreeSelect, classify.MetadataShow})
}

// ExportTableQuery is ExportQuery for table-dialect servers, accepting
// SELECT, SHOW, and DESCRIBE/DESC statements.
func (m *IoTDBMcp) ExportTableQuery(ctx context.Context, sql, format, filename string) (*ExportResult, error) {
	return m.runExport(ctx, "export_table_query", driver.DialectTable, sql, format, filename,
		classify.Set{classify.TableSelect, classify.TableShow, classify.TableDescribe})
}

// runExport is the export pipeline: classify, acquire, execute, drain,
// release, then write the file. The format is checked before the pool is
// touched, and the session goes back to the pool before the disk write so
// slow filesystems cannot starve other callers.
func (m *IoTDBMcp) runExport(ctx context.Context, tool string, want driver.Dialect, sql, formatStr, filename string, allowed classify.Set) (*ExportResult, error) {
	startTime := time.Now()

	// 1. Dialect gate
	if err := m.requireDialect(tool, want); err != nil {
		return nil, m.handleError(tool, err)
	}

	// 2. Resolve the format up front; an unsupported format must fail
	// before any connection work happens
	if formatStr == "" {
		formatStr = string(export.FormatCSV)
	}
	format, err := export.ParseFormat(formatStr)
	if err != nil {
		return nil, m.handleError(tool, err)
	}

	// 3. Check SQL length and classify
	if len(sql) > m.config.Query.MaxSQLLength {
		return nil, m.handleError(tool, fmt.Errorf("statement too long: %d bytes exceeds maximum of %d bytes", len(sql), m.config.Query.MaxSQLLength))
	}
	class, err := classify.Classify(sql, allowed)
	if err != nil {
		return nil, m.handleError(tool, err)
	}

	// 4. Determine timeout
	queryTimeout, timeoutRule := m.timeouts.Resolve(sql)
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// 5. Acquire a session, execute, drain
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

	table, err := result.Drain(rs)
	if err != nil {
		conn.Discard()
		return nil, m.handleError(tool, fmt.Errorf("failed reading result rows: %w", err))
	}

	// 6. The table is fully in memory now, give the session back before
	// the write
	conn.Release()

	// 7. Sanitize cells, then write the full table plus preview
	sanitized := m.sanitizer.HasRules()
	if sanitized {
		table.Transform(m.sanitizer.Value)
	}

	artifact, err := m.exporter.Export(table, format, filename)
	if err != nil {
		return nil, m.handleError(tool, err)
	}

	// 8. Log successful export with pipeline details
	logEvent := m.logger.Info().
		Str("tool", tool).
		Str("sql", truncateForLog(sql, 200)).
		Str("class", class.String()).
		Str("format", string(artifact.Format)).
		Str("path", artifact.Path).
		Dur("duration", time.Since(startTime)).
		Int("row_count", artifact.RowCount)
	if timeoutRule != "" {
		logEvent = logEvent.Str("timeout_rule", timeoutRule)
	}
	if sanitized {
		logEvent = logEvent.Bool("sanitized", true)
	}
	logEvent.Msg("query exported")

	return &ExportResult{
		Path:     artifact.Path,
		Format:   string(artifact.Format),
		RowCount: artifact.RowCount,
		Preview:  artifact.Preview,
	}, nil
}
