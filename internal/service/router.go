package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/port/inbound"
	"github.com/unity-mcp/unity-mcp-bridge/pkg/wire"
)

// DefaultRequestTimeout bounds how long a routed request waits for the
// editor's response.
const DefaultRequestTimeout = 30 * time.Second

// pendingRequest is a single-shot completion handle for one routed request.
// Whoever deletes the map entry under the hub mutex owns the completion; the
// channel is buffered so the owner never blocks.
type pendingRequest struct {
	id     string
	target *clientConn
	ch     chan routeResult
}

type routeResult struct {
	payload json.RawMessage
	err     error
}

// Router sends command envelopes to the active client and correlates the
// responses by id. Its pending table and id counter live on the Hub, under
// the same coarse mutex as the client map.
type Router struct {
	hub     *Hub
	timeout time.Duration
	logger  *slog.Logger
}

var _ inbound.CommandRouter = (*Router)(nil)

// NewRouter creates a Router over the hub. A non-positive timeout selects
// the default.
func NewRouter(hub *Hub, timeout time.Duration, logger *slog.Logger) *Router {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Router{hub: hub, timeout: timeout, logger: logger}
}

// Send routes one command to the active client and blocks until the
// correlated response, the timeout, or cancellation. On a success response
// carrying a result it returns the raw result; otherwise it returns the whole
// response object. Fails immediately with NoClientsConnected when no eligible
// client exists.
func (r *Router) Send(ctx context.Context, command, msgType string, params map[string]any) (json.RawMessage, error) {
	id, p, conn, clientID, err := r.hub.openRequest()
	if err != nil {
		return nil, err
	}

	req := wire.Request{Command: command, Type: msgType, Params: params, ID: id}
	data, err := req.Encode()
	if err != nil {
		r.hub.takePending(id)
		return nil, bridge.WrapError(bridge.KindProtocolError, fmt.Sprintf("encode request %s", id), err)
	}

	r.logger.Debug("routing request",
		"request_id", id,
		"command", command,
		"client_id", clientID,
	)

	// The hub mutex is not held here; the socket handle was copied out.
	if _, werr := conn.Write(data); werr != nil {
		r.hub.failPending(id, bridge.WrapError(bridge.KindConnectionClosed,
			fmt.Sprintf("write to client %s failed", clientID), werr))
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case res := <-p.ch:
		return res.payload, res.err
	case <-timer.C:
		if r.hub.takePending(id) {
			r.logger.Warn("request timed out", "request_id", id, "command", command, "client_id", clientID)
			return nil, bridge.ErrRequestTimeout(id, r.timeout)
		}
		// A completion raced the timer; it is already buffered.
		res := <-p.ch
		return res.payload, res.err
	case <-ctx.Done():
		if r.hub.takePending(id) {
			return nil, bridge.WrapError(kindForContext(ctx.Err()), fmt.Sprintf("request %s cancelled", id), ctx.Err())
		}
		res := <-p.ch
		return res.payload, res.err
	}
}

// Timeout returns the configured per-request timeout.
func (r *Router) Timeout() time.Duration {
	return r.timeout
}

func kindForContext(err error) bridge.Kind {
	if err == context.DeadlineExceeded {
		return bridge.KindTimeout
	}
	return bridge.KindConnectionClosed
}

// --- Hub-side pending table operations ---

// openRequest allocates the next request id and a pending entry bound to the
// active client, returning a copy of the socket handle so the caller writes
// outside the lock.
func (h *Hub) openRequest() (id string, p *pendingRequest, conn net.Conn, clientID string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.active == "" {
		return "", nil, nil, "", bridge.ErrNoClients()
	}
	c, ok := h.clients[h.active]
	if !ok {
		return "", nil, nil, "", bridge.ErrNoClients()
	}

	h.requestSeq++
	id = strconv.FormatUint(h.requestSeq, 10)
	p = &pendingRequest{
		id:     id,
		target: c,
		ch:     make(chan routeResult, 1),
	}
	h.pending[id] = p
	return id, p, c.conn, c.id, nil
}

// takePending removes the pending entry if still present, reporting whether
// the caller now owns the completion.
func (h *Hub) takePending(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.pending[id]; !ok {
		return false
	}
	delete(h.pending, id)
	return true
}

// failPending completes a still-pending entry with err. A lost race means
// another path already completed it; that is not an error.
func (h *Hub) failPending(id string, err error) {
	h.mu.Lock()
	p, ok := h.pending[id]
	if ok {
		delete(h.pending, id)
	}
	h.mu.Unlock()

	if ok {
		p.ch <- routeResult{err: err}
	}
}

// correlate resolves the pending entry matching an inbound response. Unknown
// ids are dropped: the request already timed out or was rejected.
func (h *Hub) correlate(env *wire.Envelope, raw json.RawMessage) {
	h.mu.Lock()
	p, ok := h.pending[env.ID]
	if ok {
		delete(h.pending, env.ID)
	}
	h.mu.Unlock()

	if !ok {
		h.logger.Debug("dropping response for unknown request id", "request_id", env.ID)
		return
	}
	if env.IsSuccess() {
		p.ch <- routeResult{payload: env.Result}
		return
	}
	p.ch <- routeResult{payload: raw}
}
