package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/port/outbound"
)

// DefaultListWait is how long ListClients waits after the discovery
// announcement before reporting the surviving clients.
const DefaultListWait = 3 * time.Second

// ClientTools backs the client-management tools with hub state directly; no
// editor round-trip is involved.
type ClientTools struct {
	hub       *Hub
	announcer outbound.Announcer
	listWait  time.Duration
	logger    *slog.Logger
}

// NewClientTools wires the hub and the discovery announcer together.
// A non-positive listWait selects the default.
func NewClientTools(hub *Hub, announcer outbound.Announcer, listWait time.Duration, logger *slog.Logger) *ClientTools {
	if listWait <= 0 {
		listWait = DefaultListWait
	}
	return &ClientTools{
		hub:       hub,
		announcer: announcer,
		listWait:  listWait,
		logger:    logger,
	}
}

// ListClients emits one discovery announcement so editors can (re)connect,
// waits the configured interval, then returns the connected clients whose
// product name is meaningful. Placeholder-named clients stay connected but
// are filtered from the listing.
func (t *ClientTools) ListClients(ctx context.Context) ([]bridge.ClientSnapshot, error) {
	if t.announcer != nil {
		if err := t.announcer.Announce(ctx, "listClients"); err != nil {
			// The listing is still meaningful without the announcement.
			t.logger.Warn("discovery announcement failed", "error", err)
		}
	}

	select {
	case <-time.After(t.listWait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	all := t.hub.Snapshot()
	listed := make([]bridge.ClientSnapshot, 0, len(all))
	for _, snap := range all {
		if snap.Listable() {
			listed = append(listed, snap)
		}
	}
	t.logger.Info("clients listed", "connected", len(all), "listed", len(listed))
	return listed, nil
}

// SetActive routes subsequent requests to the given client id.
func (t *ClientTools) SetActive(id string) error {
	if !t.hub.SetActive(id) {
		return bridge.NewError(bridge.KindNoClientsConnected,
			fmt.Sprintf("client %q is not connected", id))
	}
	return nil
}

// ConnectToProject activates the first client whose product name contains
// name, case-insensitively. Ties break by enumeration order.
func (t *ClientTools) ConnectToProject(name string) (bridge.ClientSnapshot, error) {
	needle := strings.ToLower(name)
	for _, snap := range t.hub.Snapshot() {
		if !snap.Listable() {
			continue
		}
		if strings.Contains(strings.ToLower(snap.Info.ProductName), needle) {
			t.hub.SetActive(snap.ID)
			snap.IsActive = true
			return snap, nil
		}
	}
	return bridge.ClientSnapshot{}, bridge.NewError(bridge.KindNoClientsConnected,
		fmt.Sprintf("no connected client matches project %q", name))
}

// GetActive returns the client requests are currently routed to.
func (t *ClientTools) GetActive() (bridge.ClientSnapshot, bool) {
	return t.hub.ActiveClient()
}
