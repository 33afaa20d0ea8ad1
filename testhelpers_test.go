package iotdbmcp_test

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"

	iotdbmcp "github.com/tsforge/iotdb-mcp"
	"github.com/tsforge/iotdb-mcp/internal/driver"
	"github.com/tsforge/iotdb-mcp/internal/driver/drivertest"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func defaultConfig(t *testing.T) iotdbmcp.Config {
	return iotdbmcp.Config{
		Pool: iotdbmcp.PoolConfig{
			MaxSize:           5,
			WaitTimeoutMillis: 2000,
		},
		Query: iotdbmcp.QueryConfig{
			DefaultTimeoutSeconds:       30,
			ListTablesTimeoutSeconds:    10,
			DescribeTableTimeoutSeconds: 10,
			MaxSQLLength:                100000,
			MaxResultLength:             100000,
		},
		Export: iotdbmcp.ExportConfig{Directory: t.TempDir()},
	}
}

// newTestEngine builds an engine backed by an in-memory session factory.
// Tests configure the factory (OnExecute, DialFailures) before the first
// tool call.
func newTestEngine(t *testing.T, dialect driver.Dialect, config iotdbmcp.Config) (*iotdbmcp.IoTDBMcp, *drivertest.Factory) {
	t.Helper()
	ctx := context.Background()
	factory := drivertest.NewFactory(dialect)
	engine, err := iotdbmcp.NewWithFactory(ctx, factory, "testdb", config, testLogger())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { engine.Close(ctx) })
	return engine, factory
}

// rowsExec returns an ExecFunc serving the same columns and rows for every
// statement.
func rowsExec(columns []string, rows [][]any) drivertest.ExecFunc {
	return func(sql string) (driver.ResultSet, error) {
		return drivertest.NewResultSet(columns, rows), nil
	}
}
