// Package iotdbmcp provides read-only Apache IoTDB access for AI agents
// through the Model Context Protocol (MCP).
//
// One engine serves one SQL dialect. Tree-dialect engines expose
// MetadataQuery, SelectQuery, and ExportQuery; table-dialect engines expose
// ReadQuery, ListTables, DescribeTable, and ExportTableQuery. Every query
// runs the same pipeline: keyword-prefix classification against the tool's
// allowlist, session checkout from a bounded pool, single-pass cursor drain,
// cell sanitization, then rendering as delimited text or export to a
// csv/xlsx file with a bounded preview.
//
// Classification looks only at the statement's leading keywords. It is a
// scope boundary, not a SQL validator: anything past the first keyword is
// the database's problem.
//
// # Library Usage
//
//	engine, err := iotdbmcp.New(ctx, iotdbmcp.ConnectionConfig{
//		Host:       "127.0.0.1",
//		Port:       6667,
//		User:       "root",
//		Password:   "root",
//		SQLDialect: "tree",
//	}, iotdbmcp.Config{
//		Pool: iotdbmcp.PoolConfig{MaxSize: 10, WaitTimeoutMillis: 5000},
//		Query: iotdbmcp.QueryConfig{
//			DefaultTimeoutSeconds:       30,
//			ListTablesTimeoutSeconds:    10,
//			DescribeTableTimeoutSeconds: 10,
//		},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close(ctx)
//
//	// Use directly
//	output, err := engine.SelectQuery(ctx, "SELECT temperature FROM root.sg.d1 LIMIT 10")
//
//	// Or register as MCP tools
//	iotdbmcp.RegisterMCPTools(mcpServer, engine)
//
// Sessions are dialed lazily up to the pool bound and retried on transient
// connect failures. A caller that cannot get a session within the wait
// timeout receives ErrPoolExhausted rather than blocking indefinitely.
//
// For the configuration file format and the serve/configure/doctor
// commands, see https://github.com/tsforge/iotdb-mcp
package iotdbmcp
