package handlers

import (
	"context"
	"encoding/json"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/port/inbound"
	"github.com/unity-mcp/unity-mcp-bridge/internal/service"
)

// Tests runs the Unity Test Runner inside the editor.
type Tests struct {
	router inbound.CommandRouter
}

var _ service.CommandHandler = (*Tests)(nil)

// NewTests creates the test-runner command handler.
func NewTests(router inbound.CommandRouter) *Tests {
	return &Tests{router: router}
}

func (t *Tests) CommandPrefix() string { return "tests" }

func (t *Tests) Description() string {
	return "Runs Unity Test Runner tests and reports results"
}

func (t *Tests) ToolDefinitions() map[string]bridge.ToolDefinition {
	return map[string]bridge.ToolDefinition{
		"tests_run": {
			Description: "Run Unity tests, optionally restricted to a mode or name filter",
			ParameterSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"testMode": {
						"type": "string",
						"enum": ["EditMode", "PlayMode"],
						"description": "Which test mode to run; both when omitted"
					},
					"testFilter": {
						"type": "string",
						"description": "Full or partial test name to run"
					}
				}
			}`),
		},
	}
}

func (t *Tests) Execute(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
	return routeCommand(ctx, t.router, "tests."+action, params)
}
