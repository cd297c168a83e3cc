// Package mcpserver is the inbound adapter that exposes registered handlers
// and client-management tools over the Model Context Protocol.
package mcpserver

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/unity-mcp/unity-mcp-bridge/internal/service"
)

// serverInstructions is reported to the MCP host during initialization.
const serverInstructions = "Bridges MCP tool calls to running Unity editors. " +
	"Editor-backed tools need a connected editor: use unity_listClients to see " +
	"which editors are reachable, then unity_setActiveClient or " +
	"unity_connectToProject to pick the one that receives commands."

// Server wraps an MCP server endpoint built from the bridge's handler
// registry. Tools, resources, and prompts are registered at construction
// time; enable flags are re-checked on every invocation.
type Server struct {
	registry *service.Registry
	clients  *service.ClientTools
	mcp      *server.MCPServer
	name     string
	version  string
	logger   *slog.Logger
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithServerInfo sets the name and version reported during the MCP handshake.
func WithServerInfo(name, version string) Option {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

// WithLogger sets the logger for the MCP adapter.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer builds the MCP endpoint from the registry's current contents.
// Handlers must be registered before calling NewServer; disabled prompts are
// not exposed at all, while disabled tools and resources surface an error on
// invocation.
func NewServer(registry *service.Registry, clients *service.ClientTools, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		clients:  clients,
		name:     "unity-mcp-bridge",
		version:  "dev",
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		s.name,
		s.version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithInstructions(serverInstructions),
		server.WithRecovery(),
	)

	s.registerClientTools()
	s.registerCommandTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCP returns the underlying MCP server, used to attach transports or
// in-process clients.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio runs the MCP endpoint over stdin/stdout until the context is
// cancelled. Stdout is reserved for protocol traffic; all logging must go to
// stderr.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("MCP stdio endpoint started", "server", s.name, "version", s.version)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
