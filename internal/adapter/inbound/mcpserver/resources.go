package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/yosida95/uritemplate/v3"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
)

// registerResources registers every resource handler. A URI template
// containing placeholders becomes an MCP resource template; anything else is
// a static resource.
func (s *Server) registerResources() {
	for _, h := range s.registry.Resources() {
		name := h.ResourceName()
		uri := h.ResourceURITemplate()

		if !strings.Contains(uri, "{") {
			res := mcp.NewResource(uri, name,
				mcp.WithResourceDescription(h.Description()),
				mcp.WithMIMEType("application/json"))
			s.mcp.AddResource(res, s.resourceHandler(name, nil))
			s.logger.Debug("Registered MCP resource", "resource", name, "uri", uri)
			continue
		}

		matcher, err := uritemplate.New(uri)
		if err != nil {
			s.logger.Warn("Skipping resource with invalid URI template",
				"resource", name, "template", uri, "error", err)
			continue
		}
		tmpl := mcp.NewResourceTemplate(uri, name,
			mcp.WithTemplateDescription(h.Description()),
			mcp.WithTemplateMIMEType("application/json"))
		s.mcp.AddResourceTemplate(tmpl, s.resourceHandler(name, matcher))
		s.logger.Debug("Registered MCP resource template", "resource", name, "template", uri)
	}
}

// resourceHandler adapts a read request into a fetch on the named handler.
// For templated resources, placeholder values extracted from the request URI
// are passed to the handler as params.
func (s *Server) resourceHandler(name string, matcher *uritemplate.Template) func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		handler, enabled, ok := s.registry.Resource(name)
		if !ok {
			return nil, fmt.Errorf("resource %q is not registered", name)
		}
		if !enabled {
			return nil, bridge.NewError(bridge.KindHandlerDisabled,
				fmt.Sprintf("resource %q is disabled", name))
		}

		params := map[string]any{}
		if matcher != nil {
			if values := matcher.Match(request.Params.URI); values != nil {
				for key, value := range values {
					params[key] = value.String()
				}
			}
		}

		result, err := handler.FetchResource(ctx, request.Params.URI, params)
		if err != nil {
			s.logger.Warn("Resource fetch failed", "resource", name, "uri", request.Params.URI, "error", err)
			return nil, err
		}

		contents := make([]mcp.ResourceContents, 0, len(result.Contents))
		for _, c := range result.Contents {
			contents = append(contents, mcp.TextResourceContents{
				URI:      c.URI,
				MIMEType: c.MIMEType,
				Text:     c.Text,
			})
		}
		return contents, nil
	}
}
