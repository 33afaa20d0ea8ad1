package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	iotdbmcp "github.com/tsforge/iotdb-mcp"
	"github.com/tsforge/iotdb-mcp/internal/meta"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

func runServe() error {
	ctx := context.Background()

	// 1. Load ServerConfig and layer environment overrides on top
	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyEnvOverrides(serverConfig)

	// 2. Resolve credentials kept out of the config file
	if serverConfig.Connection.User == "" && isTTY(os.Stdin.Fd()) {
		serverConfig.Connection.User = promptInput("Username: ")
	}
	if serverConfig.Connection.Password == "" && isTTY(os.Stdin.Fd()) {
		serverConfig.Connection.Password = promptPassword("Password: ")
	}

	// 3. Setup logger
	logger := setupLogger(serverConfig.Logging)

	// 4. Create IoTDBMcp instance
	engine, err := iotdbmcp.New(ctx, serverConfig.Connection, serverConfig.Config, logger)
	if err != nil {
		return fmt.Errorf("failed to create IoTDBMcp: %w", err)
	}
	defer engine.Close(ctx)

	// 5. Test database connection
	logger.Info().Msg("testing database connection")
	if err := engine.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().Msg("database connection test successful")

	// 6. Create MCP server with initialize lifecycle logging
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		clientName := req.Params.ClientInfo.Name
		clientVersion := req.Params.ClientInfo.Version
		logger.Info().
			Str("client_name", clientName).
			Str("client_version", clientVersion).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("iotdbmcp", meta.Version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)

	iotdbmcp.RegisterMCPTools(mcpServer, engine)

	// 7. Start the configured transport
	if serverConfig.Server.Transport == "http" {
		return serveHTTP(serverConfig, mcpServer, logger)
	}
	logger.Info().Str("dialect", engine.Dialect()).Msg("starting iotdbmcp server on stdio")
	return server.ServeStdio(mcpServer)
}

// serveHTTP starts the streamable HTTP transport with an optional health
// check endpoint.
func serveHTTP(serverConfig *iotdbmcp.ServerConfig, mcpServer *server.MCPServer, logger zerolog.Logger) error {
	if serverConfig.Server.Port <= 0 {
		panic("iotdbmcp: server.port must be > 0 for the http transport")
	}

	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if serverConfig.Server.HealthCheckEnabled {
		if serverConfig.Server.HealthCheckPath == "" {
			panic("iotdbmcp: health_check_path must be set when health_check_enabled is true")
		}
		mux.HandleFunc(serverConfig.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Create StreamableHTTPServer with custom http.Server
	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Manually register the MCP handler. Start() does NOT register
	// when a custom *http.Server is provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	logger.Info().Int("port", serverConfig.Server.Port).Msg("starting iotdbmcp server on http")
	return streamableServer.Start(addr)
}

// defaultConfigPath returns the config file location: the
// IOTDB_MCP_CONFIG_PATH environment variable when set, otherwise
// .iotdbmcp/config.json relative to the working directory.
func defaultConfigPath() string {
	if path := os.Getenv("IOTDB_MCP_CONFIG_PATH"); path != "" {
		return path
	}
	return ".iotdbmcp/config.json"
}

func loadServerConfig() (*iotdbmcp.ServerConfig, error) {
	configPath := defaultConfigPath()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config iotdbmcp.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides layers the IOTDB_* environment variables over the file
// config. A set variable replaces the file value, an unset one leaves it
// unchanged.
func applyEnvOverrides(config *iotdbmcp.ServerConfig) {
	if v := os.Getenv("IOTDB_HOST"); v != "" {
		config.Connection.Host = v
	}
	if v := os.Getenv("IOTDB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Connection.Port = port
		}
	}
	if v := os.Getenv("IOTDB_USER"); v != "" {
		config.Connection.User = v
	}
	if v := os.Getenv("IOTDB_PASSWORD"); v != "" {
		config.Connection.Password = v
	}
	if v := os.Getenv("IOTDB_DATABASE"); v != "" {
		config.Connection.Database = v
	}
	if v := os.Getenv("IOTDB_SQL_DIALECT"); v != "" {
		config.Connection.SQLDialect = v
	}
	if v := os.Getenv("IOTDB_EXPORT_PATH"); v != "" {
		config.Export.Directory = v
	}
}

func setupLogger(config iotdbmcp.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}
