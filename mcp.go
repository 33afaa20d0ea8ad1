package iotdbmcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tsforge/iotdb-mcp/internal/driver"
)

// RegisterMCPTools registers the engine's tools on the given MCP server.
// Which tools appear depends on the configured dialect: tree servers get
// metadata_query, select_query, and export_query; table servers get
// read_query, list_tables, describe_table, and export_table_query.
func RegisterMCPTools(mcpServer *server.MCPServer, engine *IoTDBMcp) {
	if engine.dialect == driver.DialectTable {
		registerTableTools(mcpServer, engine)
		return
	}
	registerTreeTools(mcpServer, engine)
}

func registerTreeTools(mcpServer *server.MCPServer, engine *IoTDBMcp) {
	// MetadataQuery tool
	metadataTool := mcp.NewTool("metadata_query",
		mcp.WithDescription("Query IoTDB metadata with a SHOW or COUNT statement. Permitted prefixes: SHOW DATABASES, SHOW TIMESERIES, SHOW CHILD PATHS, SHOW CHILD NODES, SHOW DEVICES, COUNT TIMESERIES, COUNT NODES, COUNT DEVICES."),
		mcp.WithString("query_sql",
			mcp.Required(),
			mcp.Description("The metadata statement to execute"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(metadataTool, engine.loggedToolHandler("metadata_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("query_sql")
		if err != nil {
			return mcp.NewToolResultError("query_sql parameter is required"), nil
		}
		output, err := engine.MetadataQuery(ctx, sql)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(output.Text), nil
	}))

	// SelectQuery tool
	selectTool := mcp.NewTool("select_query",
		mcp.WithDescription("Execute a SELECT statement against the IoTDB tree model and return the rows as comma-delimited text with a header line."),
		mcp.WithString("query_sql",
			mcp.Required(),
			mcp.Description("The SELECT statement to execute"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(selectTool, engine.loggedToolHandler("select_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("query_sql")
		if err != nil {
			return mcp.NewToolResultError("query_sql parameter is required"), nil
		}
		output, err := engine.SelectQuery(ctx, sql)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(output.Text), nil
	}))

	// ExportQuery tool
	mcpServer.AddTool(exportTool("export_query",
		"Execute a SELECT or metadata statement against the IoTDB tree model and export the full result to a file, returning the file path and a preview of the first rows.",
	), engine.loggedToolHandler("export_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("query_sql")
		if err != nil {
			return mcp.NewToolResultError("query_sql parameter is required"), nil
		}
		output, err := engine.ExportQuery(ctx, sql, req.GetString("format", "csv"), req.GetString("filename", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(output.Summary()), nil
	}))
}

func registerTableTools(mcpServer *server.MCPServer, engine *IoTDBMcp) {
	// ReadQuery tool
	readTool := mcp.NewTool("read_query",
		mcp.WithDescription("Execute a read statement (SELECT, SHOW, DESCRIBE/DESC) against the IoTDB table model and return the rows as comma-delimited text with a header line."),
		mcp.WithString("query_sql",
			mcp.Required(),
			mcp.Description("The read statement to execute"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(readTool, engine.loggedToolHandler("read_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("query_sql")
		if err != nil {
			return mcp.NewToolResultError("query_sql parameter is required"), nil
		}
		output, err := engine.ReadQuery(ctx, sql)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(output.Text), nil
	}))

	// ListTables tool
	listTablesTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List all tables in the configured database."),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(listTablesTool, engine.loggedToolHandler("list_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		output, err := engine.ListTables(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(output.Text), nil
	}))

	// DescribeTable tool
	describeTableTool := mcp.NewTool("describe_table",
		mcp.WithDescription("Show the column schema of a table, one column per line."),
		mcp.WithString("table_name",
			mcp.Required(),
			mcp.Description("The table name to describe"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(describeTableTool, engine.loggedToolHandler("describe_table", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table_name")
		if err != nil {
			return mcp.NewToolResultError("table_name parameter is required"), nil
		}
		output, err := engine.DescribeTable(ctx, table)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(output.Text), nil
	}))

	// ExportTableQuery tool
	mcpServer.AddTool(exportTool("export_table_query",
		"Execute a read statement (SELECT, SHOW, DESCRIBE/DESC) against the IoTDB table model and export the full result to a file, returning the file path and a preview of the first rows.",
	), engine.loggedToolHandler("export_table_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("query_sql")
		if err != nil {
			return mcp.NewToolResultError("query_sql parameter is required"), nil
		}
		output, err := engine.ExportTableQuery(ctx, sql, req.GetString("format", "csv"), req.GetString("filename", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(output.Summary()), nil
	}))
}

// exportTool builds the shared argument surface of the two export tools.
// Export tools write files server-side, so they carry no read-only hint.
func exportTool(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("query_sql",
			mcp.Required(),
			mcp.Description("The statement whose result should be exported"),
		),
		mcp.WithString("format",
			mcp.DefaultString("csv"),
			mcp.Description("Output format: csv or excel"),
		),
		mcp.WithString("filename",
			mcp.Description("Optional output file name; a dump_<random>_<timestamp> name is generated when omitted"),
		),
	)
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (m *IoTDBMcp) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		m.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
