package iotdbmcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/tsforge/iotdb-mcp/internal/driver"
	"github.com/tsforge/iotdb-mcp/internal/driver/iotdb"
	"github.com/tsforge/iotdb-mcp/internal/errhint"
	"github.com/tsforge/iotdb-mcp/internal/export"
	"github.com/tsforge/iotdb-mcp/internal/pool"
	"github.com/tsforge/iotdb-mcp/internal/sanitize"
	"github.com/tsforge/iotdb-mcp/internal/timeout"
)

// IoTDBMcp is the core engine behind the query and export tools. One engine
// serves one dialect; the tools of the other dialect fail with
// ErrDialectMismatch. All exported methods are safe for concurrent use from
// multiple goroutines.
type IoTDBMcp struct {
	config    Config
	dialect   driver.Dialect
	database  string
	pool      *pool.Pool
	exporter  *export.Exporter
	sanitizer *sanitize.Sanitizer
	hinter    *errhint.Hinter
	timeouts  *timeout.Resolver
	logger    zerolog.Logger
}

// New creates a new IoTDBMcp instance speaking to the endpoint described by
// conn. Sessions are dialed lazily, up to config.Pool.MaxSize of them; ctx
// is accepted for API forward-compatibility.
// Panics on invalid config. Returns error only for runtime failures (e.g.,
// export directory creation).
func New(ctx context.Context, conn ConnectionConfig, config Config, logger zerolog.Logger) (*IoTDBMcp, error) {
	// --- Connection validation (panics on invalid config) ---

	if conn.Host == "" {
		panic("iotdbmcp: connection.host must be non-empty")
	}
	if conn.Port <= 0 {
		panic("iotdbmcp: connection.port must be > 0")
	}
	dialect, err := driver.ParseDialect(conn.SQLDialect)
	if err != nil {
		panic(fmt.Sprintf("iotdbmcp: invalid connection.sql_dialect: %v", err))
	}
	if dialect == driver.DialectTable && conn.Database == "" {
		panic("iotdbmcp: connection.database must be set for the table dialect")
	}

	// Apply defaults for zero values
	if conn.Timezone == "" {
		conn.Timezone = "UTC+8"
	}
	if config.Pool.FetchSize == 0 {
		config.Pool.FetchSize = 1024
	}
	if config.Pool.FetchSize < 0 {
		panic("iotdbmcp: pool.fetch_size must be > 0")
	}

	factory := iotdb.NewFactory(iotdb.Config{
		Host:      conn.Host,
		Port:      conn.Port,
		User:      conn.User,
		Password:  conn.Password,
		Database:  conn.Database,
		FetchSize: config.Pool.FetchSize,
		Timezone:  conn.Timezone,
		Dialect:   dialect,
	})
	return NewWithFactory(ctx, factory, conn.Database, config, logger)
}

// NewWithFactory is New with the session factory supplied by the caller. It
// is the injection point for custom drivers and for the fakes used in tests.
// The factory decides the dialect; database is only used to label
// list_tables output.
// Panics on invalid config, same contract as New.
func NewWithFactory(ctx context.Context, factory driver.Factory, database string, config Config, logger zerolog.Logger) (*IoTDBMcp, error) {
	// --- Config validation (panics on invalid config) ---

	if config.Pool.MaxSize <= 0 {
		panic("iotdbmcp: pool.max_size must be > 0")
	}
	if config.Pool.WaitTimeoutMillis <= 0 {
		panic("iotdbmcp: pool.wait_timeout_millis must be > 0")
	}
	if config.Pool.MaxRetry < 0 {
		panic("iotdbmcp: pool.max_retry must be >= 0")
	}
	if config.Pool.ConnectTimeoutSeconds == 0 {
		config.Pool.ConnectTimeoutSeconds = 10
	}
	if config.Pool.ConnectTimeoutSeconds < 0 {
		panic("iotdbmcp: pool.connect_timeout_seconds must be > 0")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("iotdbmcp: query.default_timeout_seconds must be > 0")
	}
	if config.Query.ListTablesTimeoutSeconds <= 0 {
		panic("iotdbmcp: query.list_tables_timeout_seconds must be > 0")
	}
	if config.Query.DescribeTableTimeoutSeconds <= 0 {
		panic("iotdbmcp: query.describe_table_timeout_seconds must be > 0")
	}

	// Apply defaults for zero values
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = 100000
	}
	if config.Query.MaxResultLength == 0 {
		config.Query.MaxResultLength = 100000
	}
	if config.Query.MaxSQLLength < 0 {
		panic("iotdbmcp: query.max_sql_length must be > 0")
	}
	if config.Query.MaxResultLength < 0 {
		panic("iotdbmcp: query.max_result_length must be > 0")
	}

	// --- Initialize internal components ---

	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	resolver, err := timeout.NewResolver(timeout.Config{
		Default: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:   timeoutRules,
	})
	if err != nil {
		panic(fmt.Sprintf("iotdbmcp: invalid query.timeout_rules: %v", err))
	}

	hinter, err := errhint.New(mapErrorHintRules(config.ErrorHints))
	if err != nil {
		panic(fmt.Sprintf("iotdbmcp: invalid error_hints: %v", err))
	}

	sanitizer, err := sanitize.New(mapSanitizationRules(config.Sanitization))
	if err != nil {
		panic(fmt.Sprintf("iotdbmcp: invalid sanitization rules: %v", err))
	}

	// --- Create export directory ---

	exportDir := config.Export.Directory
	if exportDir == "" {
		exportDir = filepath.Join(os.TempDir(), "iotdb-mcp-exports")
	}
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", exportDir, err)
	}

	return &IoTDBMcp{
		config:   config,
		dialect:  factory.Dialect(),
		database: database,
		pool: pool.New(factory, pool.Config{
			MaxSize:     config.Pool.MaxSize,
			WaitTimeout: time.Duration(config.Pool.WaitTimeoutMillis) * time.Millisecond,
			MaxRetry:    config.Pool.MaxRetry,
			DialTimeout: time.Duration(config.Pool.ConnectTimeoutSeconds) * time.Second,
		}),
		exporter:  export.New(exportDir),
		sanitizer: sanitizer,
		hinter:    hinter,
		timeouts:  resolver,
		logger:    logger,
	}, nil
}

// Dialect reports the SQL dialect the engine was configured with, "tree" or
// "table".
func (m *IoTDBMcp) Dialect() string {
	return m.dialect.String()
}

// ExportDir reports the directory export tools write into.
func (m *IoTDBMcp) ExportDir() string {
	return m.exporter.Dir()
}

// Ping dials and releases one session, verifying the endpoint accepts
// connections with the configured credentials.
func (m *IoTDBMcp) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

// Close shuts the pool down and closes every idle session. Sessions checked
// out by in-flight calls are closed as they are released. Accepts context
// for API forward-compatibility, but does not currently use it.
func (m *IoTDBMcp) Close(ctx context.Context) error {
	return m.pool.Close()
}

// mapErrorHintRules converts iotdbmcp ErrorHintRules to internal errhint.Rules.
func mapErrorHintRules(rules []ErrorHintRule) []errhint.Rule {
	result := make([]errhint.Rule, len(rules))
	for i, r := range rules {
		result[i] = errhint.Rule{
			Pattern: r.Pattern,
			Hint:    r.Message,
		}
	}
	return result
}

// mapSanitizationRules converts iotdbmcp SanitizationRules to internal sanitize.Rules.
func mapSanitizationRules(rules []SanitizationRule) []sanitize.Rule {
	result := make([]sanitize.Rule, len(rules))
	for i, r := range rules {
		result[i] = sanitize.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}
