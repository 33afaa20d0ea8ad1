package iotdbmcp

import (
	"errors"

	"github.com/tsforge/iotdb-mcp/internal/classify"
	"github.com/tsforge/iotdb-mcp/internal/export"
	"github.com/tsforge/iotdb-mcp/internal/pool"
)

// Sentinel errors surfaced by tool methods. They are re-exported from the
// internal packages so callers can match with errors.Is without importing
// internals. Remote query failures and export write failures are not
// sentinels; they propagate wrapped with the failing operation's context.
var (
	// ErrPoolExhausted: no session became free within the configured wait
	// timeout. Recoverable by retrying the call.
	ErrPoolExhausted = pool.ErrExhausted

	// ErrConnectFailed: dialing a new session failed even after the
	// configured retries. Fatal to the call, not to the process.
	ErrConnectFailed = pool.ErrConnectFailed

	// ErrUnsupportedStatement: the statement's leading keyword is outside
	// the calling tool's allowlist.
	ErrUnsupportedStatement = classify.ErrUnsupportedStatement

	// ErrUnsupportedFormat: the export format is neither csv nor excel.
	ErrUnsupportedFormat = export.ErrUnsupportedFormat

	// ErrDialectMismatch: the tool belongs to the other SQL dialect than
	// the one the engine was configured with.
	ErrDialectMismatch = errors.New("tool not available under configured sql dialect")
)
