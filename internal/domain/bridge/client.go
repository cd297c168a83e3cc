package bridge

import "github.com/unity-mcp/unity-mcp-bridge/pkg/wire"

// Placeholder product names some editors report before a project loads.
// Clients carrying one stay connected but are hidden from user-visible
// listings.
const (
	ProductNameUnknown        = "Unknown"
	ProductNameUnknownProject = "UnknownProject"
)

// ClientSnapshot is a point-in-time copy of one connected client's public
// state. Callers may retain snapshots freely; they never alias hub state.
type ClientSnapshot struct {
	ID       string          `json:"id"`
	IsActive bool            `json:"isActive"`
	Info     wire.ClientInfo `json:"info"`
}

// Listable reports whether the client should appear in user-visible
// enumerations such as the listClients tool output.
func (s ClientSnapshot) Listable() bool {
	switch s.Info.ProductName {
	case "", ProductNameUnknown, ProductNameUnknownProject:
		return false
	}
	return true
}
