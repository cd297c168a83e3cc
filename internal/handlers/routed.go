// Package handlers contains the built-in bridge handlers. Each one forwards
// its work to the active editor client over the request router; none of them
// perform editor actions themselves.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/port/inbound"
	"github.com/unity-mcp/unity-mcp-bridge/pkg/wire"
)

// routeCommand forwards prefix.action to the active editor and decodes the
// reply into a generic object.
func routeCommand(ctx context.Context, router inbound.CommandRouter, command string, params map[string]any) (map[string]any, error) {
	if params == nil {
		params = map[string]any{}
	}
	payload, err := router.Send(ctx, command, wire.TypeCommand, params)
	if err != nil {
		return nil, err
	}
	return decodeObject(command, payload)
}

// routeResource forwards a resource fetch to the active editor. The editor's
// reply either already carries a contents array or is wrapped into one entry
// under the requested URI.
func routeResource(ctx context.Context, router inbound.CommandRouter, command, uri string, params map[string]any) (*bridge.ResourceResult, error) {
	if params == nil {
		params = map[string]any{}
	}
	payload, err := router.Send(ctx, command, wire.TypeResource, params)
	if err != nil {
		return nil, err
	}

	var result bridge.ResourceResult
	if err := json.Unmarshal(payload, &result); err == nil && len(result.Contents) > 0 {
		return &result, nil
	}

	return &bridge.ResourceResult{
		Contents: []bridge.ResourceContent{{
			URI:      uri,
			Text:     string(payload),
			MIMEType: "application/json",
		}},
	}, nil
}

func decodeObject(command string, payload json.RawMessage) (map[string]any, error) {
	if len(payload) == 0 {
		return map[string]any{}, nil
	}
	var result map[string]any
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, bridge.WrapError(bridge.KindProtocolError,
			fmt.Sprintf("editor reply to %s is not an object", command), err)
	}
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}
