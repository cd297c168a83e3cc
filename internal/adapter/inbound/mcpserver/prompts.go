package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
)

// registerPrompts registers every prompt definition of every enabled prompt
// handler. Handlers disabled at construction time are not exposed.
func (s *Server) registerPrompts() {
	for _, h := range s.registry.EnabledPrompts() {
		handlerName := h.PromptName()
		defs := h.PromptDefinitions()

		names := make([]string, 0, len(defs))
		for name := range defs {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			def := defs[name]

			opts := []mcp.PromptOption{mcp.WithPromptDescription(def.Description)}
			for _, argName := range sortedPropertyNames(def.AdditionalProperties) {
				prop := def.AdditionalProperties[argName]
				argOpts := []mcp.ArgumentOption{mcp.ArgumentDescription(prop.Description)}
				if prop.Required {
					argOpts = append(argOpts, mcp.RequiredArgument())
				}
				opts = append(opts, mcp.WithArgument(argName, argOpts...))
			}

			s.mcp.AddPrompt(mcp.NewPrompt(name, opts...), s.promptHandler(handlerName, def))
			s.logger.Debug("Registered MCP prompt", "prompt", name, "handler", handlerName)
		}
	}
}

// promptHandler renders a prompt template into a single user message. Every
// {param} placeholder with a supplied argument is replaced globally; unknown
// placeholders are left as-is.
func (s *Server) promptHandler(handlerName string, def bridge.PromptDefinition) func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return func(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		if _, enabled, ok := s.registry.Prompt(handlerName); !ok || !enabled {
			return nil, fmt.Errorf("prompt %q is disabled", handlerName)
		}

		text := def.Template
		args := request.Params.Arguments
		keys := make([]string, 0, len(args))
		for key := range args {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			text = strings.ReplaceAll(text, "{"+key+"}", args[key])
		}

		return mcp.NewGetPromptResult(def.Description, []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		}), nil
	}
}

func sortedPropertyNames(props map[string]bridge.PromptProperty) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
