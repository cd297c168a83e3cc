package handlers

import (
	"context"
	"encoding/json"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/port/inbound"
	"github.com/unity-mcp/unity-mcp-bridge/internal/service"
)

// sceneHierarchyURI is the static resource exposing the open scene's object
// hierarchy.
const sceneHierarchyURI = "unity://scene/hierarchy"

// Scene manages the open Unity scene. It serves both as a command handler
// (open/save) and as a resource handler for the scene hierarchy, so it is
// registered in two sub-registries under the same name.
type Scene struct {
	router inbound.CommandRouter
}

var (
	_ service.CommandHandler  = (*Scene)(nil)
	_ service.ResourceHandler = (*Scene)(nil)
)

// NewScene creates the scene handler.
func NewScene(router inbound.CommandRouter) *Scene {
	return &Scene{router: router}
}

func (s *Scene) CommandPrefix() string { return "scene" }
func (s *Scene) ResourceName() string  { return "scene" }

func (s *Scene) Description() string {
	return "Opens and saves Unity scenes and exposes the open scene hierarchy"
}

func (s *Scene) ToolDefinitions() map[string]bridge.ToolDefinition {
	return map[string]bridge.ToolDefinition{
		"scene_open": {
			Description: "Open a scene by its asset path, e.g. \"Assets/Scenes/Main.unity\"",
			ParameterSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"scenePath": {
						"type": "string",
						"description": "Project-relative path of the scene asset"
					}
				},
				"required": ["scenePath"]
			}`),
		},
		"scene_save": {
			Description: "Save the currently open scene",
			ParameterSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
	}
}

func (s *Scene) Execute(ctx context.Context, action string, params map[string]any) (map[string]any, error) {
	return routeCommand(ctx, s.router, "scene."+action, params)
}

func (s *Scene) ResourceURITemplate() string { return sceneHierarchyURI }

func (s *Scene) FetchResource(ctx context.Context, uri string, params map[string]any) (*bridge.ResourceResult, error) {
	return routeResource(ctx, s.router, "scene.hierarchy", uri, params)
}
