package handlers

import (
	"context"
	"encoding/json"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/port/inbound"
	"github.com/unity-mcp/unity-mcp-bridge/internal/service"
)

// Console reads and clears the Unity editor console.
type Console struct {
	router inbound.CommandRouter
}

var _ service.CommandHandler = (*Console)(nil)

// NewConsole creates the console command handler.
func NewConsole(router inbound.CommandRouter) *Console {
	return &Console{router: router}
}

func (c *Console) CommandPrefix() string { return "console" }

func (c *Console) Description() string {
	return "Reads and clears Unity editor console messages"
}

func (c *Console) ToolDefinitions() map[string]bridge.ToolDefinition {
	return map[string]bridge.ToolDefinition{
		"console_read": {
			Description: "Read recent Unity console messages, optionally filtered by type",
			ParameterSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"logType": {
						"type": "string",
						"enum": ["log", "warning", "error"],
						"description": "Only return messages of this type"
					},
					"count": {
						"type": "integer",
						"minimum": 1,
						"description": "Maximum number of messages to return"
					}
				}
			}`),
			Annotations: map[string]any{"readOnlyHint": true},
		},
		"console_clear": {
			Description: "Clear all messages from the Unity console",
			ParameterSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
	}
}

func (c *Console) Execute(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
	return routeCommand(ctx, c.router, "console."+action, params)
}
