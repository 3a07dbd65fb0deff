// Package version holds the service identity reported by the HTTP and MCP surfaces.
package version

// Build-time variables. Override Version via -ldflags.
var (
	Version = "0.1.0"
	Commit  = "dev"
)

const (
	// ServerName is the name advertised to MCP clients during the handshake.
	ServerName = "DeFi Yields MCP Server"

	// HTTPName is the name reported by the REST root endpoint.
	HTTPName = "DeFi Yields MCP HTTP Server"

	// ServiceName identifies the process in traces and metrics.
	ServiceName = "defi-yields-mcp"
)

// Get returns the version string, defaulting to "dev" when it was blanked at build time.
func Get() string {
	if Version == "" {
		return "dev"
	}
	return Version
}
