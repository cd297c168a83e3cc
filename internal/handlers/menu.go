package handlers

import (
	"context"
	"encoding/json"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/port/inbound"
	"github.com/unity-mcp/unity-mcp-bridge/internal/service"
)

// Menu executes Unity editor menu items by path.
type Menu struct {
	router inbound.CommandRouter
}

var _ service.CommandHandler = (*Menu)(nil)

// NewMenu creates the menu command handler.
func NewMenu(router inbound.CommandRouter) *Menu {
	return &Menu{router: router}
}

func (m *Menu) CommandPrefix() string { return "menu" }

func (m *Menu) Description() string {
	return "Executes Unity editor menu items by their menu path"
}

func (m *Menu) ToolDefinitions() map[string]bridge.ToolDefinition {
	return map[string]bridge.ToolDefinition{
		"menu_execute": {
			Description: "Execute a Unity editor menu item by its full path, e.g. \"File/Save Project\"",
			ParameterSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"menuItem": {
						"type": "string",
						"description": "Full menu path of the item to execute"
					}
				},
				"required": ["menuItem"]
			}`),
			Annotations: map[string]any{"destructiveHint": true},
		},
	}
}

func (m *Menu) Execute(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
	return routeCommand(ctx, m.router, "menu."+action, params)
}
