package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
)

// registerClientTools registers the four synthetic tools backed by hub state
// rather than by any editor client.
func (s *Server) registerClientTools() {
	s.mcp.AddTool(mcp.NewTool("unity_listClients",
		mcp.WithDescription("List connected Unity editor instances. Sends a discovery announcement, waits briefly for editors to connect, then returns the visible clients."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListClients)

	s.mcp.AddTool(mcp.NewTool("unity_setActiveClient",
		mcp.WithDescription("Select which connected Unity editor receives subsequent commands."),
		mcp.WithString("clientId",
			mcp.Required(),
			mcp.Description("Client id as reported by unity_listClients."),
		),
	), s.handleSetActiveClient)

	s.mcp.AddTool(mcp.NewTool("unity_connectToProject",
		mcp.WithDescription("Activate the connected Unity editor whose project name matches the given text (case-insensitive substring)."),
		mcp.WithString("projectName",
			mcp.Required(),
			mcp.Description("Full or partial Unity project name."),
		),
	), s.handleConnectToProject)

	s.mcp.AddTool(mcp.NewTool("unity_getActiveClient",
		mcp.WithDescription("Return the Unity editor currently receiving commands, if any."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleGetActiveClient)
}

func (s *Server) handleListClients(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	listed, err := s.clients.ListClients(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if listed == nil {
		listed = []bridge.ClientSnapshot{}
	}
	return jsonResult(struct {
		Clients []bridge.ClientSnapshot `json:"clients"`
	}{Clients: listed})
}

func (s *Server) handleSetActiveClient(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clientID, err := request.RequireString("clientId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.clients.SetActive(clientID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(struct {
		Success      bool   `json:"success"`
		ActiveClient string `json:"activeClient"`
	}{Success: true, ActiveClient: clientID})
}

func (s *Server) handleConnectToProject(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectName, err := request.RequireString("projectName")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.clients.ConnectToProject(projectName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(snap)
}

func (s *Server) handleGetActiveClient(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, ok := s.clients.GetActive()
	result := struct {
		Active *bridge.ClientSnapshot `json:"active"`
	}{}
	if ok {
		result.Active = &snap
	}
	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(text)), nil
}
