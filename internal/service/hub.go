// Package service implements the bridge's core behavior: the client hub that
// owns every editor connection, the request router that correlates commands
// with responses, the handler registry, and the client-management operations
// exposed as synthetic tools.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/port/inbound"
	"github.com/unity-mcp/unity-mcp-bridge/pkg/wire"
)

// clientConn holds the runtime state for a single editor connection.
// The id starts address-derived and may be rewritten once by registration;
// it is only ever mutated by the connection's own read loop under the hub
// mutex, so the read loop may read it freely.
type clientConn struct {
	id         string
	conn       net.Conn
	framer     *wire.Framer
	info       wire.ClientInfo
	registered bool
}

// Hub owns all connected editor clients and the shared state the router and
// registry operate on. A single coarse mutex guards every field; the mutex is
// never held across a socket write (writers copy the net.Conn out first).
type Hub struct {
	mu         sync.Mutex
	clients    map[string]*clientConn
	active     string
	pending    map[string]*pendingRequest
	requestSeq uint64
	subs       map[int]chan bridge.Event
	subSeq     int
	closed     bool

	wg          sync.WaitGroup
	idPrefix    string
	eventBuffer int
	dropCount   atomic.Int64
	logger      *slog.Logger
}

var _ inbound.ClientDirectory = (*Hub)(nil)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithIDPrefix sets the prefix for address-derived client ids.
func WithIDPrefix(prefix string) HubOption {
	return func(h *Hub) {
		if prefix != "" {
			h.idPrefix = prefix
		}
	}
}

// WithEventBuffer sets the per-subscriber event channel capacity.
func WithEventBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.eventBuffer = n
		}
	}
}

// NewHub creates a Hub with no clients. Connections are handed to it via
// Attach, typically by the TCP listener adapter.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		clients:     make(map[string]*clientConn),
		pending:     make(map[string]*pendingRequest),
		subs:        make(map[int]chan bridge.Event),
		idPrefix:    "unity",
		eventBuffer: 16,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach adopts a freshly accepted connection: assigns the address-derived
// id, elects it active if nothing is, and starts its read loop. The hub
// closes the connection when it is already shut down.
func (h *Hub) Attach(conn net.Conn) {
	c := &clientConn{
		conn:   conn,
		framer: wire.NewFramer(wire.DefaultMaxBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.id = fmt.Sprintf("%s-%s", h.idPrefix, conn.RemoteAddr().String())
	h.clients[c.id] = c
	h.emitLocked(bridge.NewEvent(bridge.EventClientConnected, c.id))
	if h.active == "" {
		h.active = c.id
		h.emitLocked(bridge.NewEvent(bridge.EventActiveClientChanged, c.id))
	}
	h.wg.Add(1)
	h.mu.Unlock()

	h.logger.Info("client connected", "client_id", c.id, "remote", conn.RemoteAddr().String())

	go func() {
		defer h.wg.Done()
		h.readLoop(c)
	}()
}

// readLoop pumps bytes from the socket through the framer and dispatches
// every complete message. It exits on the first read error, detaching the
// client. Framing errors short of overflow are reported and survived.
func (h *Hub) readLoop(c *clientConn) {
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			msgs, ferr := c.framer.Feed(buf[:n])
			for _, raw := range msgs {
				h.dispatch(c, raw)
			}
			if ferr != nil {
				if errors.Is(ferr, wire.ErrBufferOverflow) {
					h.logger.Warn("receive buffer overflow, dropping client", "client_id", c.id)
					h.detach(c, ferr)
					return
				}
				h.emitError(c.id, ferr)
				h.logger.Warn("malformed message from client", "client_id", c.id, "error", ferr)
			}
		}
		if err != nil {
			h.detach(c, err)
			return
		}
	}
}

// dispatch classifies one framed message: registration, correlated response,
// async event, or protocol error.
func (h *Hub) dispatch(c *clientConn, raw json.RawMessage) {
	env, err := wire.Decode(raw)
	if err != nil {
		perr := bridge.WrapError(bridge.KindProtocolError, "undecodable message", err)
		h.emitError(c.id, perr)
		h.logger.Warn("protocol error from client", "client_id", c.id, "error", perr)
		return
	}

	switch env.Type {
	case wire.TypeRegistration:
		h.register(c, env)
	case wire.TypeCommand, wire.TypeResource:
		if env.HasID() {
			h.correlate(env, raw)
			return
		}
		h.emitMessage(c, raw)
	default:
		perr := bridge.NewError(bridge.KindProtocolError, fmt.Sprintf("unknown message type %q", env.Type))
		h.emitError(c.id, perr)
		h.logger.Warn("protocol error from client", "client_id", c.id, "error", perr)
	}
}

// register applies a client-initiated identity rewrite: the record, its
// framer, and the active flag all move under the declared id. A stale
// connection already holding that id is superseded and closed.
func (h *Hub) register(c *clientConn, env *wire.Envelope) {
	var displaced net.Conn

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	// A connection displaced or raced out of the map must not rewrite ids;
	// its current id may already belong to its replacement.
	if cur, ok := h.clients[c.id]; !ok || cur != c {
		h.mu.Unlock()
		return
	}
	oldID := c.id
	newID := env.ClientID
	if newID == "" {
		newID = oldID
	}
	if newID != oldID {
		if prev, ok := h.clients[newID]; ok && prev != c {
			displaced = prev.conn
			delete(h.clients, newID)
		}
		delete(h.clients, oldID)
		c.id = newID
		h.clients[newID] = c
		if h.active == oldID {
			h.active = newID
			h.emitLocked(bridge.NewEvent(bridge.EventActiveClientChanged, newID))
		}
	}
	if env.ClientInfo != nil {
		c.info = *env.ClientInfo
	}
	c.registered = true
	ev := bridge.NewEvent(bridge.EventClientRegistered, c.id)
	ev.Payload = map[string]any{"previousId": oldID}
	h.emitLocked(ev)
	h.mu.Unlock()

	if displaced != nil {
		_ = displaced.Close()
		h.logger.Warn("stale client displaced by registration", "client_id", newID)
	}
	h.logger.Info("client registered",
		"client_id", c.id,
		"previous_id", oldID,
		"product", c.info.ProductName,
	)
}

// detach removes a client, promotes a replacement if it was active, and
// rejects pending requests that targeted it. Requests in flight toward other
// clients are untouched.
func (h *Hub) detach(c *clientConn, cause error) {
	h.mu.Lock()
	// A connection displaced by registration, or raced by Close, is no
	// longer tracked; its id may already belong to someone else, so no
	// lifecycle events are emitted for it. Pending rejection still happens.
	tracked := false
	if cur, ok := h.clients[c.id]; ok && cur == c {
		tracked = true
		delete(h.clients, c.id)
		if h.active == c.id {
			h.active = h.electLocked()
			h.emitLocked(bridge.NewEvent(bridge.EventActiveClientChanged, h.active))
		}
	}
	var rejected []*pendingRequest
	for id, p := range h.pending {
		if p.target == c {
			delete(h.pending, id)
			rejected = append(rejected, p)
		}
	}
	if tracked && !h.closed {
		if cause != nil && !isDisconnect(cause) {
			h.emitErrorLocked(c.id, cause)
		}
		h.emitLocked(bridge.NewEvent(bridge.EventClientDisconnected, c.id))
	}
	h.mu.Unlock()

	_ = c.conn.Close()
	for _, p := range rejected {
		p.ch <- routeResult{err: bridge.ErrConnectionClosed(c.id)}
	}
	if tracked {
		h.logger.Info("client disconnected", "client_id", c.id, "pending_rejected", len(rejected))
	}
}

// isDisconnect reports whether err is an orderly connection teardown rather
// than a peer-side fault worth a clientError event.
func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// electLocked picks the replacement active client: the lexicographically
// smallest id, which is arbitrary but stable within a run. Returns "" when
// no clients remain. Caller holds h.mu.
func (h *Hub) electLocked() string {
	best := ""
	for id := range h.clients {
		if best == "" || id < best {
			best = id
		}
	}
	return best
}

// SetActive routes subsequent requests to the given client. Returns false if
// no such client is connected.
func (h *Hub) SetActive(id string) bool {
	h.mu.Lock()
	if _, ok := h.clients[id]; !ok {
		h.mu.Unlock()
		return false
	}
	if h.active != id {
		h.active = id
		h.emitLocked(bridge.NewEvent(bridge.EventActiveClientChanged, id))
	}
	h.mu.Unlock()

	h.logger.Info("active client set", "client_id", id)
	return true
}

// Snapshot returns the connected clients ordered by id. Callers may retain
// the result; it never aliases hub state.
func (h *Hub) Snapshot() []bridge.ClientSnapshot {
	h.mu.Lock()
	snaps := make([]bridge.ClientSnapshot, 0, len(h.clients))
	for _, c := range h.clients {
		snaps = append(snaps, bridge.ClientSnapshot{
			ID:       c.id,
			IsActive: c.id == h.active,
			Info:     c.info,
		})
	}
	h.mu.Unlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps
}

// ActiveClient returns the client requests are currently routed to.
func (h *Hub) ActiveClient() (bridge.ClientSnapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[h.active]
	if !ok {
		return bridge.ClientSnapshot{}, false
	}
	return bridge.ClientSnapshot{ID: c.id, IsActive: true, Info: c.info}, true
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close shuts the hub down: closes every client socket, rejects every
// pending request, waits for read loops to drain, then closes subscriber
// channels. Safe to call more than once.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := make([]net.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.clients = make(map[string]*clientConn)
	h.active = ""
	rejected := make([]*pendingRequest, 0, len(h.pending))
	for id, p := range h.pending {
		delete(h.pending, id)
		rejected = append(rejected, p)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	for _, p := range rejected {
		p.ch <- routeResult{err: bridge.NewError(bridge.KindConnectionClosed, "bridge shutting down")}
	}
	h.wg.Wait()

	h.mu.Lock()
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub)
	}
	h.mu.Unlock()

	h.logger.Info("hub closed", "rejected_requests", len(rejected))
	return nil
}

// --- Lifecycle events ---

// Subscribe returns a channel of lifecycle events and a cancel function.
// Events are dropped, not blocked on, when the subscriber falls behind.
func (h *Hub) Subscribe() (<-chan bridge.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan bridge.Event, h.eventBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subSeq++
	id := h.subSeq
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
}

// DroppedEvents returns the total number of events dropped on slow
// subscribers.
func (h *Hub) DroppedEvents() int64 {
	return h.dropCount.Load()
}

// emitLocked fans an event out to all subscribers without blocking.
// Caller holds h.mu.
func (h *Hub) emitLocked(ev bridge.Event) {
	if h.closed {
		return
	}
	for _, sub := range h.subs {
		select {
		case sub <- ev:
		default:
			drops := h.dropCount.Add(1)
			h.logger.Warn("event dropped on slow subscriber",
				"event", string(ev.Kind),
				"client_id", ev.ClientID,
				"total_drops", drops,
			)
		}
	}
}

func (h *Hub) emit(ev bridge.Event) {
	h.mu.Lock()
	h.emitLocked(ev)
	h.mu.Unlock()
}

func (h *Hub) emitError(clientID string, err error) {
	ev := bridge.NewEvent(bridge.EventClientError, clientID)
	ev.Err = err
	h.emit(ev)
}

// emitErrorLocked is emitError for callers already holding h.mu.
func (h *Hub) emitErrorLocked(clientID string, err error) {
	ev := bridge.NewEvent(bridge.EventClientError, clientID)
	ev.Err = err
	h.emitLocked(ev)
}

// emitMessage publishes an uncorrelated inbound object as an async event.
func (h *Hub) emitMessage(c *clientConn, raw json.RawMessage) {
	var payload map[string]any
	_ = json.Unmarshal(raw, &payload)
	ev := bridge.NewEvent(bridge.EventClientMessage, c.id)
	ev.Payload = payload
	h.emit(ev)
	h.logger.Debug("async message from client", "client_id", c.id)
}
