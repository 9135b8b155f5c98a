package mcp

import "errors"

// ErrNoServer indicates the named MCP server is not reachable.
var ErrNoServer = errors.New("mcp: no such server")
