package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/port/outbound"
	"github.com/unity-mcp/unity-mcp-bridge/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Stub handlers ---

type stubCommand struct {
	mu         sync.Mutex
	lastAction string
	lastParams map[string]any
	result     map[string]any
	err        error
}

var _ service.CommandHandler = (*stubCommand)(nil)

func (c *stubCommand) CommandPrefix() string { return "echo" }
func (c *stubCommand) Description() string   { return "Echo test commands" }

func (c *stubCommand) ToolDefinitions() map[string]bridge.ToolDefinition {
	return map[string]bridge.ToolDefinition{
		"echo_say": {
			Description:     "Echo a message back",
			ParameterSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
			Annotations:     map[string]any{"readOnlyHint": true},
		},
		"echo": {
			Description:     "Echo with the default action",
			ParameterSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		},
	}
}

func (c *stubCommand) Execute(_ context.Context, action string, params map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAction = action
	c.lastParams = params
	return c.result, c.err
}

func (c *stubCommand) last() (string, map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAction, c.lastParams
}

type stubResource struct {
	mu         sync.Mutex
	template   string
	lastURI    string
	lastParams map[string]any
	result     *bridge.ResourceResult
	err        error
}

var _ service.ResourceHandler = (*stubResource)(nil)

func (r *stubResource) ResourceName() string        { return "logs" }
func (r *stubResource) Description() string         { return "Editor log entries" }
func (r *stubResource) ResourceURITemplate() string { return r.template }

func (r *stubResource) FetchResource(_ context.Context, uri string, params map[string]any) (*bridge.ResourceResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastURI = uri
	r.lastParams = params
	return r.result, r.err
}

func (r *stubResource) last() (string, map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastURI, r.lastParams
}

type stubPrompt struct{}

var _ service.PromptHandler = (*stubPrompt)(nil)

func (p *stubPrompt) PromptName() string  { return "workflow" }
func (p *stubPrompt) Description() string { return "Editor workflow prompts" }

func (p *stubPrompt) PromptDefinitions() map[string]bridge.PromptDefinition {
	return map[string]bridge.PromptDefinition{
		"fix_issue": {
			Description: "Plan a fix for a reported issue",
			Template:    "Fix {issue} in {area} of the project.",
			AdditionalProperties: map[string]bridge.PromptProperty{
				"issue": {Type: "string", Description: "The issue to fix", Required: true},
				"area":  {Type: "string", Description: "Affected project area"},
			},
		},
	}
}

type stubAnnouncer struct {
	mu      sync.Mutex
	reasons []string
}

var _ outbound.Announcer = (*stubAnnouncer)(nil)

func (a *stubAnnouncer) Announce(_ context.Context, reason string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reasons = append(a.reasons, reason)
	return nil
}

// --- Test fixtures ---

// newTestServer builds a Server over a fresh hub and registry. The registry
// is populated by the build callback before the MCP endpoint is constructed.
func newTestServer(t *testing.T, build func(reg *service.Registry)) (*Server, *service.Hub) {
	t.Helper()

	hub := service.NewHub(testLogger())
	t.Cleanup(func() { hub.Close() })

	reg := service.NewRegistry(hub, testLogger())
	if build != nil {
		build(reg)
	}

	tools := service.NewClientTools(hub, &stubAnnouncer{}, 10*time.Millisecond, testLogger())
	srv := NewServer(reg, tools,
		WithServerInfo("test-bridge", "0.0.1"),
		WithLogger(testLogger()))
	return srv, hub
}

// newTestClient connects an in-process MCP client to the server and performs
// the initialize handshake.
func newTestClient(t *testing.T, srv *Server) *client.Client {
	t.Helper()

	c, err := client.NewInProcessClient(srv.MCP())
	if err != nil {
		t.Fatalf("create in-process client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("start client: %v", err)
	}
	_, err = c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo:      mcp.Implementation{Name: "test-client", Version: "0.0.1"},
		},
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.CallTool(context.Background(), req)
	if err != nil {
		t.Fatalf("CallTool(%s) error = %v", name, err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	if len(result.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("tool content is %T, want TextContent", result.Content[0])
	}
	return tc.Text
}

// attachClient connects a raw socket to the hub and registers it under the
// given id and product name. Returns a cleanup closing the editor side.
func attachClient(t *testing.T, hub *service.Hub, id, product string) func() {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	editor, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	select {
	case conn := <-accepted:
		hub.Attach(conn)
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}

	reg := `{"type":"registration","clientId":"` + id + `","clientInfo":{"productName":"` + product + `"}}`
	if _, err := editor.Write([]byte(reg)); err != nil {
		t.Fatalf("write registration: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	return func() { _ = editor.Close() }
}

// --- Surface tests ---

func TestServer_ListTools_ExposesHandlerAndClientTools(t *testing.T) {
	srv, _ := newTestServer(t, func(reg *service.Registry) {
		if err := reg.Register(&stubCommand{result: map[string]any{"success": true}}); err != nil {
			t.Fatalf("register: %v", err)
		}
	})
	c := newTestClient(t, srv)

	result, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}

	names := make(map[string]bool, len(result.Tools))
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"echo", "echo_say",
		"unity_listClients", "unity_setActiveClient", "unity_connectToProject", "unity_getActiveClient",
	} {
		if !names[want] {
			t.Errorf("ListTools() missing %q (got %v)", want, names)
		}
	}
}

func TestServer_ListTools_SchemaRoundTrips(t *testing.T) {
	srv, _ := newTestServer(t, func(reg *service.Registry) {
		if err := reg.Register(&stubCommand{}); err != nil {
			t.Fatalf("register: %v", err)
		}
	})
	c := newTestClient(t, srv)

	result, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}

	for _, tool := range result.Tools {
		if tool.Name != "echo_say" {
			continue
		}
		schema, err := json.Marshal(tool.InputSchema)
		if err != nil {
			t.Fatalf("marshal schema: %v", err)
		}
		if got := string(schema); !strings.Contains(got, `"text"`) {
			t.Errorf("echo_say schema = %s, want the declared text property", got)
		}
		return
	}
	t.Fatal("echo_say not listed")
}

// --- Client-management tool tests ---

func TestServer_ClientTools_ListAndActivate(t *testing.T) {
	srv, hub := newTestServer(t, nil)
	closeAlpha := attachClient(t, hub, "proj-alpha", "AlphaGame")
	defer closeAlpha()
	closeBeta := attachClient(t, hub, "proj-beta", "BetaGame")
	defer closeBeta()

	c := newTestClient(t, srv)

	listResult := callTool(t, c, "unity_listClients", nil)
	if listResult.IsError {
		t.Fatalf("unity_listClients returned error: %s", resultText(t, listResult))
	}
	var listed struct {
		Clients []bridge.ClientSnapshot `json:"clients"`
	}
	if err := json.Unmarshal([]byte(resultText(t, listResult)), &listed); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(listed.Clients) != 2 {
		t.Fatalf("listed %d clients, want 2", len(listed.Clients))
	}

	setResult := callTool(t, c, "unity_setActiveClient", map[string]any{"clientId": "proj-beta"})
	if setResult.IsError {
		t.Fatalf("unity_setActiveClient returned error: %s", resultText(t, setResult))
	}
	active, ok := hub.ActiveClient()
	if !ok || active.ID != "proj-beta" {
		t.Errorf("active after set = %v, want proj-beta", active.ID)
	}

	getResult := callTool(t, c, "unity_getActiveClient", nil)
	var got struct {
		Active *bridge.ClientSnapshot `json:"active"`
	}
	if err := json.Unmarshal([]byte(resultText(t, getResult)), &got); err != nil {
		t.Fatalf("unmarshal active: %v", err)
	}
	if got.Active == nil || got.Active.ID != "proj-beta" || !got.Active.IsActive {
		t.Errorf("getActiveClient = %+v, want active proj-beta", got.Active)
	}
}

func TestServer_ClientTools_ConnectToProject(t *testing.T) {
	srv, hub := newTestServer(t, nil)
	closeAlpha := attachClient(t, hub, "proj-alpha", "AlphaGame")
	defer closeAlpha()
	closeBeta := attachClient(t, hub, "proj-beta", "BetaGame")
	defer closeBeta()

	c := newTestClient(t, srv)

	result := callTool(t, c, "unity_connectToProject", map[string]any{"projectName": "beta"})
	if result.IsError {
		t.Fatalf("unity_connectToProject returned error: %s", resultText(t, result))
	}
	var snap bridge.ClientSnapshot
	if err := json.Unmarshal([]byte(resultText(t, result)), &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.ID != "proj-beta" || !snap.IsActive {
		t.Errorf("connectToProject = %+v, want active proj-beta", snap)
	}

	miss := callTool(t, c, "unity_connectToProject", map[string]any{"projectName": "zzz"})
	if !miss.IsError {
		t.Error("unity_connectToProject with no match should return a tool error")
	}
}

func TestServer_ClientTools_SetActiveUnknown(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := newTestClient(t, srv)

	result := callTool(t, c, "unity_setActiveClient", map[string]any{"clientId": "nope"})
	if !result.IsError {
		t.Error("unity_setActiveClient with unknown id should return a tool error")
	}
}

func TestServer_ClientTools_GetActiveEmpty(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	c := newTestClient(t, srv)

	result := callTool(t, c, "unity_getActiveClient", nil)
	if result.IsError {
		t.Fatalf("unity_getActiveClient returned error: %s", resultText(t, result))
	}
	if got := resultText(t, result); got != `{"active":null}` {
		t.Errorf("unity_getActiveClient = %s, want {\"active\":null}", got)
	}
}
