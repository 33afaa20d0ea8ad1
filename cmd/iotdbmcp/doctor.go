package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"

	iotdbmcp "github.com/tsforge/iotdb-mcp"
	"github.com/tsforge/iotdb-mcp/internal/meta"
)

func runDoctor() error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "Path to configuration file")
	fs.Parse(os.Args[2:])

	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor, *configPath)
}

func doctor(w io.Writer, useColor bool, configPath string) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "iotdbmcp %s\n\n", meta.Version)

	// Load and validate config
	config, ok := doctorValidateConfig(w, useColor, configPath)
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'iotdbmcp doctor' again.")
		return nil
	}

	// Print agent connection snippets
	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, config)
	return nil
}

// doctorValidateConfig loads and validates the config file, printing check results.
// Returns the parsed config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) (*iotdbmcp.ServerConfig, bool) {
	allPassed := true

	// Check 1: Config file exists and is valid JSON
	data, err := os.ReadFile(configPath)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file readable (%s)", configPath))
		allPassed = false
		return nil, allPassed
	}
	printCheck(w, useColor, true, fmt.Sprintf("Config file readable (%s)", configPath))

	var config iotdbmcp.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file is valid JSON: %v", err))
		allPassed = false
		return nil, allPassed
	}
	printCheck(w, useColor, true, "Config file is valid JSON")

	// Check 2: connection.host is set
	if config.Connection.Host == "" {
		printCheck(w, useColor, false, "connection.host is set")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("connection.host is set (%s)", config.Connection.Host))
	}

	// Check 3: connection.port > 0
	if config.Connection.Port <= 0 {
		printCheck(w, useColor, false, "connection.port is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("connection.port is > 0 (%d)", config.Connection.Port))
	}

	// Check 4: sql_dialect is tree or table (empty means tree)
	dialect := config.Connection.SQLDialect
	if dialect == "" {
		dialect = "tree"
	}
	if dialect != "tree" && dialect != "table" {
		printCheck(w, useColor, false, fmt.Sprintf("connection.sql_dialect is tree or table (got %q)", config.Connection.SQLDialect))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("connection.sql_dialect is tree or table (%s)", dialect))
	}

	// Check 5: database set when the table dialect is selected
	if dialect == "table" {
		if config.Connection.Database == "" {
			printCheck(w, useColor, false, "connection.database is set (required for the table dialect)")
			allPassed = false
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("connection.database is set (%s)", config.Connection.Database))
		}
	}

	// Check 6: pool.max_size > 0 (serve panics on zero)
	if config.Pool.MaxSize <= 0 {
		printCheck(w, useColor, false, "pool.max_size is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("pool.max_size is > 0 (%d)", config.Pool.MaxSize))
	}

	// Check 7: export directory is creatable
	if config.Export.Directory == "" {
		printCheck(w, useColor, true, "export.directory defaults to <os temp dir>/iotdb-mcp-exports")
	} else if err := os.MkdirAll(config.Export.Directory, 0o755); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("export.directory is creatable: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("export.directory is creatable (%s)", config.Export.Directory))
	}

	// Check 8: http transport settings
	if config.Server.Transport == "http" {
		if config.Server.Port <= 0 {
			printCheck(w, useColor, false, "server.port is > 0")
			allPassed = false
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("server.port is > 0 (%d)", config.Server.Port))
		}

		if config.Server.HealthCheckEnabled {
			if config.Server.HealthCheckPath == "" {
				printCheck(w, useColor, false, "health_check_path is set (required when health_check_enabled)")
				allPassed = false
			} else {
				printCheck(w, useColor, true, fmt.Sprintf("health_check_path is set (%s)", config.Server.HealthCheckPath))
			}
		}
	}

	// Check 9: Regex patterns compile
	regexOK := true

	for i, rule := range config.ErrorHints {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("error_hints[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Sanitization {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("sanitization[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Query.TimeoutRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("timeout_rules[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	}

	return &config, allPassed
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	if pass {
		if useColor {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", msg)
		}
	} else {
		if useColor {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", msg)
		}
	}
}

// printAgentSnippets prints MCP connection config snippets for various AI
// agents, matching the configured transport.
func printAgentSnippets(w io.Writer, useColor bool, config *iotdbmcp.ServerConfig) {
	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;36m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}

	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}

	heading("Agent Connection Snippets")
	fmt.Fprintln(w)

	if config.Server.Transport == "http" {
		printHTTPSnippets(w, subheading, fmt.Sprintf("http://localhost:%d/mcp", config.Server.Port))
		return
	}
	printStdioSnippets(w, subheading)
}

// printHTTPSnippets prints URL-based snippets for the http transport.
func printHTTPSnippets(w io.Writer, subheading func(string), url string) {
	// Claude Code
	subheading("Claude Code")
	fmt.Fprintf(w, "  Run this command to add the server:\n\n")
	fmt.Fprintf(w, "    claude mcp add --transport http iotdb %s\n\n", url)
	fmt.Fprintf(w, "  Or add to .mcp.json (project scope):\n\n")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "iotdb": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Copilot CLI
	subheading("Copilot CLI (~/.copilot/mcp-config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "iotdb": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Gemini CLI
	subheading("Gemini CLI (~/.gemini/settings.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "iotdb": {
        "httpUrl": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// OpenCode
	subheading("OpenCode (opencode.json)")
	fmt.Fprintf(w, `  {
    "mcp": {
      "iotdb": {
        "type": "remote",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Cursor
	subheading("Cursor (.cursor/mcp.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "iotdb": {
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Windsurf
	subheading("Windsurf (~/.codeium/windsurf/mcp_config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "iotdb": {
        "serverUrl": "%s"
      }
    }
  }
`, url)
}

// printStdioSnippets prints command-based snippets for the stdio transport.
// The agent spawns the server process itself, so each snippet names the
// iotdbmcp binary rather than a URL.
func printStdioSnippets(w io.Writer, subheading func(string)) {
	// Claude Code
	subheading("Claude Code")
	fmt.Fprintf(w, "  Run this command to add the server:\n\n")
	fmt.Fprintf(w, "    claude mcp add iotdb -- iotdbmcp serve\n\n")
	fmt.Fprintf(w, "  Or add to .mcp.json (project scope):\n\n")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "iotdb": {
        "command": "iotdbmcp",
        "args": ["serve"]
      }
    }
  }
`)
	fmt.Fprintln(w)

	// Copilot CLI
	subheading("Copilot CLI (~/.copilot/mcp-config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "iotdb": {
        "type": "local",
        "command": "iotdbmcp",
        "args": ["serve"]
      }
    }
  }
`)
	fmt.Fprintln(w)

	// Gemini CLI
	subheading("Gemini CLI (~/.gemini/settings.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "iotdb": {
        "command": "iotdbmcp",
        "args": ["serve"]
      }
    }
  }
`)
	fmt.Fprintln(w)

	// OpenCode
	subheading("OpenCode (opencode.json)")
	fmt.Fprintf(w, `  {
    "mcp": {
      "iotdb": {
        "type": "local",
        "command": ["iotdbmcp", "serve"]
      }
    }
  }
`)
	fmt.Fprintln(w)

	// Cursor
	subheading("Cursor (.cursor/mcp.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "iotdb": {
        "command": "iotdbmcp",
        "args": ["serve"]
      }
    }
  }
`)
	fmt.Fprintln(w)

	// Windsurf
	subheading("Windsurf (~/.codeium/windsurf/mcp_config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "iotdb": {
        "command": "iotdbmcp",
        "args": ["serve"]
      }
    }
  }
`)
}
