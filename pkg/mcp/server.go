package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/middleware"
)

// ServerName is the name reported to MCP clients during initialization.
const ServerName = "discograph"

// instructions is sent to clients on initialize. It tells a model how the
// tools chain together.
const instructions = `Discograph answers questions about the relations between music artists and labels.
Entities are addressed by kind ("artist" or "label") and a positive numeric id.
Use search_entities to find an entity by name, then get_network to explore the artists and labels
around it, or relation_counts to see how its relations spread over the years.
random_entity picks a starting point when no name is given.`

// Server is the discograph MCP endpoint. Every tool call is observed for
// metrics and logging, and a panicking tool becomes an error result.
type Server struct {
	mcp      *server.MCPServer
	observer *ToolObserver
	logger   *zap.Logger
}

// NewServer creates the MCP server reporting version.
func NewServer(version string, logger *zap.Logger) *Server {
	observer := NewToolObserver(logger)
	mcpServer := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
		server.WithRecovery(),
		server.WithHooks(observer.Hooks()),
	)

	return &Server{
		mcp:      mcpServer,
		observer: observer,
		logger:   logger.Named("mcp"),
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// Handler returns the stateless HTTP transport wrapped with JSON-RPC request
// logging, ready to mount on /mcp.
func (s *Server) Handler() http.Handler {
	return middleware.MCPRequestLogger(s.logger)(s.NewStreamableHTTPServer())
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
