package editor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/unity-mcp/unity-mcp-bridge/pkg/wire"
)

// DefaultBridgeAddr is where a locally running bridge listens.
const DefaultBridgeAddr = "127.0.0.1:27182"

// Client connection defaults. Reconnect delay grows as base*2^attempt,
// capped, and resets once a dial succeeds.
const (
	DefaultDialTimeout = 5 * time.Second
	DefaultBackoffBase = 1 * time.Second
	DefaultBackoffCap  = 30 * time.Second
)

// Client attaches a Dispatcher to the bridge in dial mode: it connects to
// the hub's TCP listener, announces its identity with a registration
// message, then serves routed envelopes until the connection drops, and
// reconnects with capped exponential backoff until closed.
type Client struct {
	addr        string
	dispatcher  *Dispatcher
	clientID    string
	info        *wire.ClientInfo
	logger      *slog.Logger
	dialTimeout time.Duration
	backoffBase time.Duration
	backoffCap  time.Duration

	mu     sync.Mutex
	closed bool
	quit   chan struct{}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientID sets the persistent id sent in the registration message.
// Without one the bridge keeps the address-derived id it assigned on
// accept.
func WithClientID(id string) ClientOption {
	return func(c *Client) { c.clientID = id }
}

// WithClientInfo sets the metadata block sent in the registration message.
func WithClientInfo(info wire.ClientInfo) ClientOption {
	return func(c *Client) { c.info = &info }
}

// WithProjectPath records the editor's project path and a stable digest
// of it in the registration metadata. Applied after WithClientInfo it
// augments the info block rather than replacing it.
func WithProjectPath(path string) ClientOption {
	return func(c *Client) {
		if path == "" {
			return
		}
		if c.info == nil {
			c.info = &wire.ClientInfo{}
		}
		c.info.ProjectPath = path
		c.info.ProjectPathHash = hashProjectPath(path)
	}
}

// WithClientLogger sets the logger used for connection lifecycle events.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialTimeout bounds each connection attempt.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithReconnectBackoff overrides the reconnect delay's base and cap.
func WithReconnectBackoff(base, limit time.Duration) ClientOption {
	return func(c *Client) {
		if base > 0 {
			c.backoffBase = base
		}
		if limit >= base && limit > 0 {
			c.backoffCap = limit
		}
	}
}

// NewClient returns a dial-mode client for the bridge at addr. An empty
// addr selects DefaultBridgeAddr.
func NewClient(addr string, dispatcher *Dispatcher, opts ...ClientOption) *Client {
	if addr == "" {
		addr = DefaultBridgeAddr
	}
	c := &Client{
		addr:        addr,
		dispatcher:  dispatcher,
		logger:      slog.Default(),
		dialTimeout: DefaultDialTimeout,
		backoffBase: DefaultBackoffBase,
		backoffCap:  DefaultBackoffCap,
		quit:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start dials the bridge and serves envelopes until ctx is cancelled or
// Close is called, reconnecting after every drop. It never returns a
// connection failure; those are logged and retried.
func (c *Client) Start(ctx context.Context) error {
	attempt := 0
	for {
		connected, err := c.runOnce(ctx)
		if ctx.Err() != nil || c.isClosed() {
			return nil
		}
		if connected {
			attempt = 0
		}
		delay := c.backoffDelay(attempt)
		attempt++
		if err != nil {
			c.logger.Warn("bridge connection failed, scheduling reconnect",
				"addr", c.addr, "attempt", attempt, "delay", delay, "error", err)
		} else {
			c.logger.Info("bridge connection closed, scheduling reconnect",
				"addr", c.addr, "attempt", attempt, "delay", delay)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		case <-c.quit:
			return nil
		}
	}
}

// Close stops the client, dropping any live connection and ending Start.
// Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.quit)
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// runOnce performs one connect-register-serve cycle. The first return
// reports whether the dial succeeded, which resets the backoff ladder.
func (c *Client) runOnce(ctx context.Context) (bool, error) {
	dialer := &net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return false, fmt.Errorf("editor: dial %s: %w", c.addr, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-c.quit:
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	reg, err := wire.NewRegistration(c.clientID, c.info).Encode()
	if err != nil {
		return true, err
	}
	if _, err := conn.Write(reg); err != nil {
		return true, fmt.Errorf("editor: send registration: %w", err)
	}
	c.logger.Info("connected to bridge", "addr", c.addr, "clientId", c.clientID)

	sess := &session{conn: conn, dispatcher: c.dispatcher, logger: c.logger}
	return true, sess.serve(ctx)
}

// hashProjectPath derives the short project identity digest sent at
// registration. Same path, same digest, across restarts and platforms.
func hashProjectPath(path string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(path))
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.backoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > c.backoffCap {
			return c.backoffCap
		}
	}
	if delay > c.backoffCap {
		return c.backoffCap
	}
	return delay
}
