package handlers

import (
	"github.com/unity-mcp/unity-mcp-bridge/internal/port/inbound"
	"github.com/unity-mcp/unity-mcp-bridge/internal/service"
)

// RegisterAll registers every built-in handler with the registry.
func RegisterAll(reg *service.Registry, router inbound.CommandRouter) error {
	for _, h := range []any{
		NewMenu(router),
		NewConsole(router),
		NewTests(router),
		NewScene(router),
		NewLogs(router),
		NewWorkflow(),
	} {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// Bootstrap registers the built-in handlers and applies the optional enable
// manifest at manifestPath.
func Bootstrap(reg *service.Registry, router inbound.CommandRouter, manifestPath string) error {
	if err := RegisterAll(reg, router); err != nil {
		return err
	}
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	reg.ApplyEnablement(m.Flags())
	return nil
}
