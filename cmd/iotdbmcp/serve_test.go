package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	iotdbmcp "github.com/tsforge/iotdb-mcp"
)

// validServerConfig returns a minimal valid ServerConfig for testing.
func validServerConfig() iotdbmcp.ServerConfig {
	return iotdbmcp.ServerConfig{
		Config: iotdbmcp.Config{
			Pool: iotdbmcp.PoolConfig{MaxSize: 5},
			Query: iotdbmcp.QueryConfig{
				DefaultTimeoutSeconds:       30,
				ListTablesTimeoutSeconds:    10,
				DescribeTableTimeoutSeconds: 10,
			},
		},
		Server: iotdbmcp.ServerSettings{
			Transport: "http",
			Port:      8080,
		},
		Connection: iotdbmcp.ConnectionConfig{
			Host:       "localhost",
			Port:       6667,
			User:       "root",
			SQLDialect: "tree",
		},
	}
}

func writeConfigFile(t *testing.T, dir string, config iotdbmcp.ServerConfig) string {
	t.Helper()
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// Note: Tests using t.Setenv() cannot use t.Parallel() in Go.

func TestLoadConfigValid(t *testing.T) {
	dir := t.TempDir()
	cfg := validServerConfig()
	path := writeConfigFile(t, dir, cfg)

	t.Setenv("IOTDB_MCP_CONFIG_PATH", path)

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", loaded.Server.Port)
	}
	if loaded.Pool.MaxSize != 5 {
		t.Fatalf("expected max_size 5, got %d", loaded.Pool.MaxSize)
	}
	if loaded.Query.DefaultTimeoutSeconds != 30 {
		t.Fatalf("expected default_timeout_seconds 30, got %d", loaded.Query.DefaultTimeoutSeconds)
	}
	if loaded.Connection.Host != "localhost" {
		t.Fatalf("expected host 'localhost', got %q", loaded.Connection.Host)
	}
	if loaded.Connection.Port != 6667 {
		t.Fatalf("expected connection port 6667, got %d", loaded.Connection.Port)
	}
	if loaded.Connection.SQLDialect != "tree" {
		t.Fatalf("expected sql_dialect 'tree', got %q", loaded.Connection.SQLDialect)
	}
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	cfg := validServerConfig()
	cfg.Server.Port = 9999
	path := writeConfigFile(t, dir, cfg)

	t.Setenv("IOTDB_MCP_CONFIG_PATH", path)

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Server.Port != 9999 {
		t.Fatalf("expected port 9999 from env path, got %d", loaded.Server.Port)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	t.Setenv("IOTDB_MCP_CONFIG_PATH", "/nonexistent/path/config.json")

	_, err := loadServerConfig()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "/nonexistent/path/config.json") {
		t.Fatalf("expected error to contain config path, got %q", err.Error())
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{invalid json}"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	t.Setenv("IOTDB_MCP_CONFIG_PATH", path)

	_, err := loadServerConfig()
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	errMsg := err.Error()
	if !strings.Contains(errMsg, "parse") && !strings.Contains(errMsg, "unmarshal") && !strings.Contains(errMsg, "invalid") {
		t.Fatalf("expected parse/unmarshal/invalid error, got %q", errMsg)
	}
}

func TestLoadConfigValidation_NoPort(t *testing.T) {
	dir := t.TempDir()
	cfg := validServerConfig()
	cfg.Server.Port = 0
	path := writeConfigFile(t, dir, cfg)

	t.Setenv("IOTDB_MCP_CONFIG_PATH", path)

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	// The validation happens in serveHTTP() which checks Server.Port <= 0.
	// We verify the loaded config has port 0, which would trigger the panic.
	if loaded.Server.Port != 0 {
		t.Fatalf("expected port 0, got %d", loaded.Server.Port)
	}
}

func TestLoadConfigValidation_HealthCheckPathEmpty(t *testing.T) {
	dir := t.TempDir()
	cfg := validServerConfig()
	cfg.Server.HealthCheckEnabled = true
	cfg.Server.HealthCheckPath = ""
	path := writeConfigFile(t, dir, cfg)

	t.Setenv("IOTDB_MCP_CONFIG_PATH", path)

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	// Verify the loaded config would trigger the health check validation error
	// in serveHTTP(): "health_check_path must be set when health_check_enabled is true"
	if !loaded.Server.HealthCheckEnabled {
		t.Fatal("expected health_check_enabled to be true")
	}
	if loaded.Server.HealthCheckPath != "" {
		t.Fatalf("expected empty health_check_path, got %q", loaded.Server.HealthCheckPath)
	}
}

func TestLoadConfigValidation_HealthCheckPathNotRequiredWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	cfg := validServerConfig()
	cfg.Server.HealthCheckEnabled = false
	cfg.Server.HealthCheckPath = ""
	path := writeConfigFile(t, dir, cfg)

	t.Setenv("IOTDB_MCP_CONFIG_PATH", path)

	loaded, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	// When health check is disabled, empty path should be fine
	if loaded.Server.HealthCheckEnabled {
		t.Fatal("expected health_check_enabled to be false")
	}
}

func TestDefaultConfigPathFromEnv(t *testing.T) {
	t.Setenv("IOTDB_MCP_CONFIG_PATH", "/etc/iotdbmcp/config.json")

	if got := defaultConfigPath(); got != "/etc/iotdbmcp/config.json" {
		t.Fatalf("expected env path, got %q", got)
	}
}

func TestDefaultConfigPathFallback(t *testing.T) {
	t.Setenv("IOTDB_MCP_CONFIG_PATH", "")

	if got := defaultConfigPath(); got != ".iotdbmcp/config.json" {
		t.Fatalf("expected .iotdbmcp/config.json, got %q", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("IOTDB_HOST", "iotdb.internal")
	t.Setenv("IOTDB_PORT", "7001")
	t.Setenv("IOTDB_USER", "reader")
	t.Setenv("IOTDB_PASSWORD", "s3cret")
	t.Setenv("IOTDB_DATABASE", "fleet")
	t.Setenv("IOTDB_SQL_DIALECT", "table")
	t.Setenv("IOTDB_EXPORT_PATH", "/var/lib/iotdbmcp/exports")

	cfg := validServerConfig()
	applyEnvOverrides(&cfg)

	if cfg.Connection.Host != "iotdb.internal" {
		t.Fatalf("expected host override, got %q", cfg.Connection.Host)
	}
	if cfg.Connection.Port != 7001 {
		t.Fatalf("expected port override, got %d", cfg.Connection.Port)
	}
	if cfg.Connection.User != "reader" {
		t.Fatalf("expected user override, got %q", cfg.Connection.User)
	}
	if cfg.Connection.Password != "s3cret" {
		t.Fatalf("expected password override, got %q", cfg.Connection.Password)
	}
	if cfg.Connection.Database != "fleet" {
		t.Fatalf("expected database override, got %q", cfg.Connection.Database)
	}
	if cfg.Connection.SQLDialect != "table" {
		t.Fatalf("expected sql_dialect override, got %q", cfg.Connection.SQLDialect)
	}
	if cfg.Export.Directory != "/var/lib/iotdbmcp/exports" {
		t.Fatalf("expected export directory override, got %q", cfg.Export.Directory)
	}
}

func TestApplyEnvOverridesUnsetLeavesConfig(t *testing.T) {
	t.Setenv("IOTDB_HOST", "")
	t.Setenv("IOTDB_PORT", "")

	cfg := validServerConfig()
	applyEnvOverrides(&cfg)

	if cfg.Connection.Host != "localhost" {
		t.Fatalf("expected host unchanged, got %q", cfg.Connection.Host)
	}
	if cfg.Connection.Port != 6667 {
		t.Fatalf("expected port unchanged, got %d", cfg.Connection.Port)
	}
}

func TestApplyEnvOverridesIgnoresBadPort(t *testing.T) {
	t.Setenv("IOTDB_PORT", "not-a-number")

	cfg := validServerConfig()
	applyEnvOverrides(&cfg)

	if cfg.Connection.Port != 6667 {
		t.Fatalf("expected port unchanged for non-numeric override, got %d", cfg.Connection.Port)
	}
}
