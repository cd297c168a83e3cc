package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
)

// emptyObjectSchema is used for tools whose definition carries no parameter
// schema. MCP requires inputSchema to be a JSON Schema object.
var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// executionError is the payload returned when a handler fails outright, as
// opposed to reporting a structured failure.
type executionError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
}

// registerCommandTools registers one MCP tool per tool definition of every
// command handler, keyed by the tool's own name.
func (s *Server) registerCommandTools() {
	for _, h := range s.registry.Commands() {
		prefix := h.CommandPrefix()
		defs := h.ToolDefinitions()
		for _, name := range sortedKeys(defs) {
			def := defs[name]

			schema := def.ParameterSchema
			if len(schema) == 0 {
				schema = emptyObjectSchema
			}
			tool := mcp.NewToolWithRawSchema(name, def.Description, schema)
			applyAnnotations(&tool, def.Annotations)

			s.mcp.AddTool(tool, s.commandToolHandler(prefix, name))
			s.logger.Debug("Registered MCP tool", "tool", name, "prefix", prefix)
		}
	}
}

// commandToolHandler adapts one tool invocation into a handler execute call.
// The action is the portion of the tool name after the first underscore, or
// "execute" when the name has none.
func (s *Server) commandToolHandler(prefix, toolName string) server.ToolHandlerFunc {
	action := actionFromTool(toolName)

	return func(ctx context.Context, request mcp.CallToolRequest) (result *mcp.CallToolResult, _ error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Tool handler panicked", "tool", toolName, "panic", r)
				result = executionErrorResult(toolName, fmt.Errorf("handler panic: %v", r))
			}
		}()

		handler, enabled, ok := s.registry.Command(prefix)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown command prefix %q", prefix)), nil
		}
		if !enabled {
			return mcp.NewToolResultError("prefix disabled"), nil
		}

		execResult, err := handler.Execute(ctx, action, request.GetArguments())
		if err != nil {
			s.logger.Warn("Tool execution failed", "tool", toolName, "error", err)
			return executionErrorResult(toolName, err), nil
		}

		if msg, failed := resultFailure(execResult); failed {
			return mcp.NewToolResultError(msg), nil
		}

		text, err := json.Marshal(execResult)
		if err != nil {
			return executionErrorResult(toolName, err), nil
		}
		return mcp.NewToolResultText(string(text)), nil
	}
}

// actionFromTool derives the routed action from a tool name.
func actionFromTool(name string) string {
	if _, after, ok := strings.Cut(name, "_"); ok {
		return after
	}
	return "execute"
}

// resultFailure inspects a handler result for an explicit success=false
// marker and extracts a human-readable message for the tool error.
func resultFailure(result map[string]any) (string, bool) {
	ok, present := result["success"].(bool)
	if !present || ok {
		return "", false
	}
	for _, key := range []string{"error", "message"} {
		if msg, ok := result[key].(string); ok && msg != "" {
			return msg, true
		}
	}
	text, err := json.Marshal(result)
	if err != nil {
		return "command reported failure", true
	}
	return string(text), true
}

func executionErrorResult(toolName string, err error) *mcp.CallToolResult {
	payload, merr := json.Marshal(executionError{
		Type:      "execution_error",
		Message:   err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
		Command:   toolName,
	})
	if merr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(payload))
}

// applyAnnotations copies recognized annotation keys from a tool definition
// onto the MCP tool. Unrecognized keys are ignored.
func applyAnnotations(tool *mcp.Tool, annotations map[string]any) {
	if len(annotations) == 0 {
		return
	}
	if title, ok := annotations["title"].(string); ok {
		tool.Annotations.Title = title
	}
	if v, ok := annotations["readOnlyHint"].(bool); ok {
		tool.Annotations.ReadOnlyHint = mcp.ToBoolPtr(v)
	}
	if v, ok := annotations["destructiveHint"].(bool); ok {
		tool.Annotations.DestructiveHint = mcp.ToBoolPtr(v)
	}
	if v, ok := annotations["idempotentHint"].(bool); ok {
		tool.Annotations.IdempotentHint = mcp.ToBoolPtr(v)
	}
	if v, ok := annotations["openWorldHint"].(bool); ok {
		tool.Annotations.OpenWorldHint = mcp.ToBoolPtr(v)
	}
}

func sortedKeys(defs map[string]bridge.ToolDefinition) []string {
	keys := make([]string, 0, len(defs))
	for k := range defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
