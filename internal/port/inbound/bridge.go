// Package inbound defines the inbound port interfaces for the bridge core.
// Inbound adapters (the MCP endpoint, the TCP listener) call these interfaces.
package inbound

import (
	"context"
	"encoding/json"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
)

// CommandRouter is the inbound port for routing commands to the active
// editor client. Handlers call this to execute operations editor-side.
type CommandRouter interface {
	// Send routes one command and blocks until the correlated response,
	// the request timeout, or ctx cancellation. On a success response it
	// returns the raw result payload; otherwise the whole response object.
	Send(ctx context.Context, command, msgType string, params map[string]any) (json.RawMessage, error)
}

// ClientDirectory is the inbound port for client-management operations.
type ClientDirectory interface {
	// Snapshot returns all connected clients ordered by id.
	Snapshot() []bridge.ClientSnapshot

	// SetActive routes subsequent requests to the given client.
	// Returns false if no such client is connected.
	SetActive(id string) bool

	// ActiveClient returns the client requests are currently routed to.
	ActiveClient() (bridge.ClientSnapshot, bool)
}
