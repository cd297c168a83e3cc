package handlers

import (
	"context"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/port/inbound"
	"github.com/unity-mcp/unity-mcp-bridge/internal/service"
)

// Logs exposes editor log entries as a templated resource. The log type
// placeholder selects between info, warning, and error entries.
type Logs struct {
	router inbound.CommandRouter
}

var _ service.ResourceHandler = (*Logs)(nil)

// NewLogs creates the log resource handler.
func NewLogs(router inbound.CommandRouter) *Logs {
	return &Logs{router: router}
}

func (l *Logs) ResourceName() string { return "logs" }

func (l *Logs) Description() string {
	return "Unity editor log entries filtered by log type"
}

func (l *Logs) ResourceURITemplate() string { return "unity://logs/{logType}" }

func (l *Logs) FetchResource(ctx context.Context, uri string, params map[string]any) (*bridge.ResourceResult, error) {
	return routeResource(ctx, l.router, "logs.fetch", uri, params)
}
