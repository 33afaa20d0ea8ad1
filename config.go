package iotdbmcp

import "github.com/tsforge/iotdb-mcp/internal/errhint"

// Config is the base configuration used by library mode via New().
type Config struct {
	Pool         PoolConfig         `json:"pool"`
	Query        QueryConfig        `json:"query"`
	Export       ExportConfig       `json:"export"`
	ErrorHints   []ErrorHintRule    `json:"error_hints"`
	Sanitization []SanitizationRule `json:"sanitization"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
}

// ConnectionConfig identifies the IoTDB endpoint and the dialect spoken to
// it. Library mode passes it to New(); CLI mode reads it from the config
// file and the IOTDB_* environment variables.
type ConnectionConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	// Database scopes table-dialect sessions and the list_tables header.
	Database string `json:"database"`
	// SQLDialect selects the query surface: "tree" (default) or "table".
	SQLDialect string `json:"sql_dialect"`
	// Timezone is forwarded to the session. It does not change how the
	// leading Time column is rendered (raw epoch, always).
	Timezone string `json:"timezone"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxSize               int `json:"max_size"`
	WaitTimeoutMillis     int `json:"wait_timeout_millis"`
	MaxRetry              int `json:"max_retry"`
	FetchSize             int `json:"fetch_size"`
	ConnectTimeoutSeconds int `json:"connect_timeout_seconds"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultTimeoutSeconds       int           `json:"default_timeout_seconds"`
	ListTablesTimeoutSeconds    int           `json:"list_tables_timeout_seconds"`
	DescribeTableTimeoutSeconds int           `json:"describe_table_timeout_seconds"`
	MaxSQLLength                int           `json:"max_sql_length"`
	MaxResultLength             int           `json:"max_result_length"`
	TimeoutRules                []TimeoutRule `json:"timeout_rules"`
}

// TimeoutRule maps a statement pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ExportConfig holds file export settings.
type ExportConfig struct {
	// Directory receives exported files. Created by New() when missing.
	// Empty means <os temp dir>/iotdb-mcp-exports.
	Directory string `json:"directory"`
}

// ErrorHintRule maps an error message pattern to a guidance message.
type ErrorHintRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// SanitizationRule defines a regex-based cell sanitization rule.
type SanitizationRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}

// ServerSettings holds transport settings for CLI mode.
type ServerSettings struct {
	// Transport is "stdio" (default) or "http".
	Transport          string `json:"transport"`
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stderr, stdout, or file path
}

// DefaultServerConfig returns the configuration used when no config file
// exists: a local tree-dialect endpoint with the stock credentials.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Config: Config{
			Pool: PoolConfig{
				MaxSize:               100,
				WaitTimeoutMillis:     5000,
				MaxRetry:              3,
				FetchSize:             1024,
				ConnectTimeoutSeconds: 10,
			},
			Query: QueryConfig{
				DefaultTimeoutSeconds:       30,
				ListTablesTimeoutSeconds:    10,
				DescribeTableTimeoutSeconds: 10,
				MaxSQLLength:                100000,
				MaxResultLength:             100000,
			},
			ErrorHints: defaultErrorHints(),
		},
		Connection: ConnectionConfig{
			Host:       "127.0.0.1",
			Port:       6667,
			User:       "root",
			Password:   "root",
			SQLDialect: "tree",
			Timezone:   "UTC+8",
		},
		Server: ServerSettings{
			Transport:          "stdio",
			Port:               8080,
			HealthCheckEnabled: true,
			HealthCheckPath:    "/health",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// defaultErrorHints exposes the stock hint rules as config entries so the
// written config file shows users the format.
func defaultErrorHints() []ErrorHintRule {
	rules := errhint.Defaults()
	hints := make([]ErrorHintRule, len(rules))
	for i, r := range rules {
		hints[i] = ErrorHintRule{Pattern: r.Pattern, Message: r.Hint}
	}
	return hints
}
