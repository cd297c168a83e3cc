package handlers

import (
	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/service"
)

// Workflow provides canned prompt templates for common editor workflows.
// Prompts are rendered bridge-side and never touch the editor connection.
type Workflow struct{}

var _ service.PromptHandler = (*Workflow)(nil)

// NewWorkflow creates the workflow prompt handler.
func NewWorkflow() *Workflow {
	return &Workflow{}
}

func (w *Workflow) PromptName() string { return "workflow" }

func (w *Workflow) Description() string {
	return "Prompt templates for common Unity editor workflows"
}

func (w *Workflow) PromptDefinitions() map[string]bridge.PromptDefinition {
	return map[string]bridge.PromptDefinition{
		"debug_error": {
			Description: "Investigate a Unity console error",
			Template: "A Unity project is reporting the following error:\n\n{error}\n\n" +
				"Use the console_read tool to gather surrounding log context, " +
				"then explain the likely cause and suggest a fix.",
			AdditionalProperties: map[string]bridge.PromptProperty{
				"error": {
					Type:        "string",
					Description: "The error message from the Unity console",
					Required:    true,
				},
			},
		},
		"run_and_fix_tests": {
			Description: "Run the test suite and fix failures",
			Template: "Run the {testMode} tests with the tests_run tool. " +
				"For each failure, read the console output, identify the cause, " +
				"and propose a fix before re-running.",
			AdditionalProperties: map[string]bridge.PromptProperty{
				"testMode": {
					Type:        "string",
					Description: "EditMode or PlayMode",
					Required:    true,
				},
			},
		},
		"setup_scene": {
			Description: "Inspect and prepare the open scene",
			Template: "Read the unity://scene/hierarchy resource to understand the " +
				"current scene layout, then carry out this request: {request}",
			AdditionalProperties: map[string]bridge.PromptProperty{
				"request": {
					Type:        "string",
					Description: "What should change in the scene",
					Required:    true,
				},
			},
		},
	}
}
