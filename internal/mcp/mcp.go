// Package mcp exposes the narrow surface of the Model Context Protocol layer
// that tools consume. Server lifecycle (spawning, handshakes, transport) lives
// outside the execution core; tools only need discovery and query.
package mcp

import "context"

// ServerInfo describes one reachable MCP server.
type ServerInfo struct {
	// Name is the server's registered identifier.
	Name string `json:"name"`

	// Description summarises what the server offers.
	Description string `json:"description,omitempty"`

	// Tools lists the tool names the server exports.
	Tools []string `json:"tools,omitempty"`
}

// Surface is the query interface tools receive through their context.
type Surface interface {
	// ListAvailableServers returns the currently reachable servers.
	ListAvailableServers(ctx context.Context) ([]ServerInfo, error)

	// Query invokes the named server tool with a free-form payload and
	// returns its structured response.
	Query(ctx context.Context, server, toolName string, payload map[string]any) (map[string]any, error)
}

// NopSurface is a Surface with no servers, used when MCP is not configured.
type NopSurface struct{}

var _ Surface = NopSurface{}

// ListAvailableServers returns an empty list.
func (NopSurface) ListAvailableServers(ctx context.Context) ([]ServerInfo, error) {
	return nil, nil
}

// Query always reports that no server is available.
func (NopSurface) Query(ctx context.Context, server, toolName string, payload map[string]any) (map[string]any, error) {
	return nil, ErrNoServer
}

// StaticSurface serves a fixed server list and delegates queries to a
// caller-supplied function. Useful for wiring and tests.
type StaticSurface struct {
	Servers []ServerInfo
	QueryFn func(ctx context.Context, server, toolName string, payload map[string]any) (map[string]any, error)
}

var _ Surface = (*StaticSurface)(nil)

// ListAvailableServers returns the configured server list.
func (s *StaticSurface) ListAvailableServers(ctx context.Context) ([]ServerInfo, error) {
	return s.Servers, nil
}

// Query delegates to QueryFn, or reports no server when unset.
func (s *StaticSurface) Query(ctx context.Context, server, toolName string, payload map[string]any) (map[string]any, error) {
	if s.QueryFn == nil {
		return nil, ErrNoServer
	}
	return s.QueryFn(ctx, server, toolName, payload)
}
