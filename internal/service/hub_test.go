package service

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testConnPair returns a connected loopback TCP pair: the editor-side end
// and the bridge-side end to hand to Hub.Attach.
func testConnPair(t *testing.T) (editor net.Conn, bridgeSide net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	type accepted struct {
		conn net.Conn
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		c, aerr := ln.Accept()
		ch <- accepted{c, aerr}
	}()

	editor, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	a := <-ch
	if a.err != nil {
		t.Fatalf("accept: %v", a.err)
	}
	return editor, a.conn
}

// waitEvent receives from ch until an event of the wanted kind arrives.
func waitEvent(t *testing.T, ch <-chan bridge.Event, kind bridge.EventKind) bridge.Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %q", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", kind)
		}
	}
}

// settle gives read loops a moment to process written bytes.
func settle() {
	time.Sleep(100 * time.Millisecond)
}

// --- Attach / identification ---

func TestHub_Attach_AssignsAddressDerivedID(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	defer hub.Close()

	editor, bridgeSide := testConnPair(t)
	defer editor.Close()

	hub.Attach(bridgeSide)
	settle()

	snaps := hub.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("Snapshot() has %d clients, want 1", len(snaps))
	}
	wantID := fmt.Sprintf("unity-%s", editor.LocalAddr().String())
	if snaps[0].ID != wantID {
		t.Errorf("client id = %q, want %q", snaps[0].ID, wantID)
	}
	if !snaps[0].IsActive {
		t.Error("sole client is not active")
	}
}

func TestHub_Attach_CustomPrefix(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger(), WithIDPrefix("editor"))
	defer hub.Close()

	editor, bridgeSide := testConnPair(t)
	defer editor.Close()

	hub.Attach(bridgeSide)
	settle()

	snaps := hub.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("Snapshot() has %d clients, want 1", len(snaps))
	}
	wantID := fmt.Sprintf("editor-%s", editor.LocalAddr().String())
	if snaps[0].ID != wantID {
		t.Errorf("client id = %q, want %q", snaps[0].ID, wantID)
	}
}

func TestHub_Attach_SecondClientDoesNotStealActive(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	defer hub.Close()

	editorA, bridgeA := testConnPair(t)
	defer editorA.Close()
	editorB, bridgeB := testConnPair(t)
	defer editorB.Close()

	hub.Attach(bridgeA)
	settle()
	firstActive, ok := hub.ActiveClient()
	if !ok {
		t.Fatal("no active client after first attach")
	}

	hub.Attach(bridgeB)
	settle()

	active, ok := hub.ActiveClient()
	if !ok {
		t.Fatal("no active client after second attach")
	}
	if active.ID != firstActive.ID {
		t.Errorf("active = %q, want first client %q", active.ID, firstActive.ID)
	}
	if hub.ClientCount() != 2 {
		t.Errorf("ClientCount() = %d, want 2", hub.ClientCount())
	}
}

// --- Registration ---

func TestHub_Registration_RewritesID(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	defer hub.Close()

	editor, bridgeSide := testConnPair(t)
	defer editor.Close()

	hub.Attach(bridgeSide)
	settle()
	oldID := fmt.Sprintf("unity-%s", editor.LocalAddr().String())

	// The editor transmitter is newline-free; the hub must accept that.
	if _, err := editor.Write([]byte(`{"type":"registration","clientId":"proj-x","clientInfo":{"productName":"ProjX","unityVersion":"6000.0.32f1"}}`)); err != nil {
		t.Fatalf("write registration: %v", err)
	}
	settle()

	snaps := hub.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("Snapshot() has %d clients, want 1", len(snaps))
	}
	if snaps[0].ID != "proj-x" {
		t.Errorf("client id = %q, want %q", snaps[0].ID, "proj-x")
	}
	for _, snap := range snaps {
		if snap.ID == oldID {
			t.Errorf("address-derived id %q still present after rewrite", oldID)
		}
	}
	if snaps[0].Info.ProductName != "ProjX" {
		t.Errorf("ProductName = %q, want %q", snaps[0].Info.ProductName, "ProjX")
	}
	if !snaps[0].IsActive {
		t.Error("active flag did not follow the rewritten id")
	}
}

func TestHub_Registration_EmptyClientIDKeepsAddressID(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	defer hub.Close()

	editor, bridgeSide := testConnPair(t)
	defer editor.Close()

	hub.Attach(bridgeSide)
	settle()
	wantID := fmt.Sprintf("unity-%s", editor.LocalAddr().String())

	if _, err := editor.Write([]byte(`{"type":"registration","clientInfo":{"productName":"NoID"}}` + "\n")); err != nil {
		t.Fatalf("write registration: %v", err)
	}
	settle()

	snaps := hub.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("Snapshot() has %d clients, want 1", len(snaps))
	}
	if snaps[0].ID != wantID {
		t.Errorf("client id = %q, want address-derived %q", snaps[0].ID, wantID)
	}
	if snaps[0].Info.ProductName != "NoID" {
		t.Errorf("ProductName = %q, want %q", snaps[0].Info.ProductName, "NoID")
	}
}

func TestHub_Registration_DisplacesStaleHolder(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	defer hub.Close()

	editorA, bridgeA := testConnPair(t)
	defer editorA.Close()
	editorB, bridgeB := testConnPair(t)
	defer editorB.Close()

	hub.Attach(bridgeA)
	settle()
	if _, err := editorA.Write([]byte(`{"type":"registration","clientId":"proj-x"}`)); err != nil {
		t.Fatalf("write registration A: %v", err)
	}
	settle()

	hub.Attach(bridgeB)
	settle()
	if _, err := editorB.Write([]byte(`{"type":"registration","clientId":"proj-x"}`)); err != nil {
		t.Fatalf("write registration B: %v", err)
	}
	settle()

	snaps := hub.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("Snapshot() has %d clients, want 1 (stale holder displaced)", len(snaps))
	}
	if snaps[0].ID != "proj-x" {
		t.Errorf("client id = %q, want %q", snaps[0].ID, "proj-x")
	}

	// The displaced connection was closed by the hub.
	_ = editorA.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := editorA.Read(buf); err != io.EOF {
		t.Errorf("displaced connection read = %v, want io.EOF", err)
	}
}

// --- Active election ---

func TestHub_Detach_PromotesLowestID(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	defer hub.Close()

	editors := make([]net.Conn, 3)
	for i, name := range []string{"proj-c", "proj-a", "proj-b"} {
		editor, bridgeSide := testConnPair(t)
		defer editor.Close()
		editors[i] = editor
		hub.Attach(bridgeSide)
		settle()
		if _, err := editor.Write([]byte(fmt.Sprintf(`{"type":"registration","clientId":%q}`, name))); err != nil {
			t.Fatalf("write registration: %v", err)
		}
		settle()
	}

	// First attached (now proj-c) is active.
	active, _ := hub.ActiveClient()
	if active.ID != "proj-c" {
		t.Fatalf("active = %q, want %q", active.ID, "proj-c")
	}

	editors[0].Close()
	settle()

	active, ok := hub.ActiveClient()
	if !ok {
		t.Fatal("no active client after promotion")
	}
	if active.ID != "proj-a" {
		t.Errorf("promoted active = %q, want lowest id %q", active.ID, "proj-a")
	}
}

func TestHub_Detach_LastClientClearsActive(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	defer hub.Close()

	editor, bridgeSide := testConnPair(t)
	hub.Attach(bridgeSide)
	settle()

	editor.Close()
	settle()

	if _, ok := hub.ActiveClient(); ok {
		t.Error("ActiveClient() reports a client after the last one left")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestHub_SetActive(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	defer hub.Close()

	editorA, bridgeA := testConnPair(t)
	defer editorA.Close()
	editorB, bridgeB := testConnPair(t)
	defer editorB.Close()

	hub.Attach(bridgeA)
	settle()
	hub.Attach(bridgeB)
	settle()

	if hub.SetActive("nope") {
		t.Error("SetActive(unknown) = true, want false")
	}

	wantID := fmt.Sprintf("unity-%s", editorB.LocalAddr().String())
	if !hub.SetActive(wantID) {
		t.Fatalf("SetActive(%q) = false, want true", wantID)
	}
	active, _ := hub.ActiveClient()
	if active.ID != wantID {
		t.Errorf("active = %q, want %q", active.ID, wantID)
	}
}

// --- Lifecycle events ---

func TestHub_Events_ConnectRegisterDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	defer hub.Close()

	events, cancel := hub.Subscribe()
	defer cancel()

	editor, bridgeSide := testConnPair(t)
	hub.Attach(bridgeSide)

	connected := waitEvent(t, events, bridge.EventClientConnected)
	activated := waitEvent(t, events, bridge.EventActiveClientChanged)
	if connected.ClientID != activated.ClientID {
		t.Errorf("connected id %q != activated id %q", connected.ClientID, activated.ClientID)
	}
	if connected.ID == "" || connected.Timestamp.IsZero() {
		t.Error("event missing id or timestamp")
	}

	if _, err := editor.Write([]byte(`{"type":"registration","clientId":"proj-x"}`)); err != nil {
		t.Fatalf("write registration: %v", err)
	}
	registered := waitEvent(t, events, bridge.EventClientRegistered)
	if registered.ClientID != "proj-x" {
		t.Errorf("registered event client = %q, want %q", registered.ClientID, "proj-x")
	}
	if prev, _ := registered.Payload["previousId"].(string); prev != connected.ClientID {
		t.Errorf("previousId = %q, want %q", prev, connected.ClientID)
	}

	editor.Close()
	disconnected := waitEvent(t, events, bridge.EventClientDisconnected)
	if disconnected.ClientID != "proj-x" {
		t.Errorf("disconnected event client = %q, want %q", disconnected.ClientID, "proj-x")
	}
	cleared := waitEvent(t, events, bridge.EventActiveClientChanged)
	if cleared.ClientID != "" {
		t.Errorf("active after last disconnect = %q, want empty", cleared.ClientID)
	}
}

func TestHub_Events_AsyncMessage(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	defer hub.Close()

	events, cancel := hub.Subscribe()
	defer cancel()

	editor, bridgeSide := testConnPair(t)
	defer editor.Close()
	hub.Attach(bridgeSide)
	settle()

	if _, err := editor.Write([]byte(`{"message":"compile finished","level":"info"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev := waitEvent(t, events, bridge.EventClientMessage)
	if got, _ := ev.Payload["message"].(string); got != "compile finished" {
		t.Errorf("payload message = %q, want %q", got, "compile finished")
	}
}

func TestHub_Events_UnknownTypeIsProtocolError(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	defer hub.Close()

	events, cancel := hub.Subscribe()
	defer cancel()

	editor, bridgeSide := testConnPair(t)
	defer editor.Close()
	hub.Attach(bridgeSide)
	settle()

	if _, err := editor.Write([]byte(`{"type":"telemetry","data":1}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	ev := waitEvent(t, events, bridge.EventClientError)
	if !bridge.IsKind(ev.Err, bridge.KindProtocolError) {
		t.Errorf("event error = %v, want ProtocolError kind", ev.Err)
	}
	if hub.ClientCount() != 1 {
		t.Error("client was dropped over a protocol error; it should survive")
	}
}

func TestHub_Events_SlowSubscriberDropsNotBlocks(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger(), WithEventBuffer(1))
	defer hub.Close()

	// Never read from this subscription.
	_, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		editor, bridgeSide := testConnPair(t)
		defer editor.Close()
		hub.Attach(bridgeSide)
	}
	settle()

	if hub.DroppedEvents() == 0 {
		t.Error("DroppedEvents() = 0, want drops with a full subscriber buffer")
	}
	if hub.ClientCount() != 5 {
		t.Errorf("ClientCount() = %d, want 5 (emission must not block attach)", hub.ClientCount())
	}
}

// --- Shutdown ---

func TestHub_Close_ClosesClientsAndIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())

	editor, bridgeSide := testConnPair(t)
	defer editor.Close()
	hub.Attach(bridgeSide)
	settle()

	if err := hub.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := hub.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}

	_ = editor.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := editor.Read(buf); err != io.EOF {
		t.Errorf("client read after hub close = %v, want io.EOF", err)
	}

	// Late attach is refused.
	editor2, bridgeSide2 := testConnPair(t)
	defer editor2.Close()
	hub.Attach(bridgeSide2)
	if hub.ClientCount() != 0 {
		t.Error("Attach() after Close() admitted a client")
	}
}

func TestHub_Subscribe_AfterCloseReturnsClosedChannel(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	_ = hub.Close()

	events, cancel := hub.Subscribe()
	defer cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("received event from post-close subscription")
		}
	case <-time.After(time.Second):
		t.Error("channel from post-close Subscribe() is not closed")
	}
}

func TestHub_Snapshot_IsRetainable(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(testLogger())
	defer hub.Close()

	editor, bridgeSide := testConnPair(t)
	defer editor.Close()
	hub.Attach(bridgeSide)
	settle()

	first := hub.Snapshot()
	first[0].ID = "mutated"
	first[0].Info.ProductName = "mutated"

	second := hub.Snapshot()
	if second[0].ID == "mutated" || second[0].Info.ProductName == "mutated" {
		t.Error("mutating a snapshot leaked into hub state")
	}
}
