// Package tcp provides the TCP transport adapter that feeds editor
// connections into the client hub.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
	"github.com/unity-mcp/unity-mcp-bridge/internal/service"
)

// DefaultKeepAlive is the TCP keepalive period applied to accepted editor
// sockets.
const DefaultKeepAlive = 30 * time.Second

// Listener accepts editor TCP connections and hands each one to the hub.
// Bind and serve are separate steps so the caller can announce the actual
// bound port before accepting (relevant with an ephemeral port).
type Listener struct {
	hub       *service.Hub
	addr      string
	keepAlive time.Duration
	logger    *slog.Logger

	mu sync.Mutex
	ln net.Listener
}

// Option is a functional option for configuring a Listener.
type Option func(*Listener)

// WithAddr sets the listen address. Default is "127.0.0.1:27182".
func WithAddr(addr string) Option {
	return func(l *Listener) {
		l.addr = addr
	}
}

// WithKeepAlive sets the keepalive period for accepted sockets.
func WithKeepAlive(d time.Duration) Option {
	return func(l *Listener) {
		l.keepAlive = d
	}
}

// WithLogger sets the logger for the listener.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a TCP listener adapter for the given hub.
func NewListener(hub *service.Hub, opts ...Option) *Listener {
	l := &Listener{
		hub:       hub,
		addr:      "127.0.0.1:27182",
		keepAlive: DefaultKeepAlive,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Listen binds the configured address. A bind failure is fatal to bridge
// startup and is returned as a configuration error.
func (l *Listener) Listen() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return bridge.WrapError(bridge.KindConfiguration,
			fmt.Sprintf("failed to bind TCP listener on %s", l.addr), err)
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	l.logger.Info("TCP listener bound", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen succeeds. With an
// ephemeral port this is the only way to learn the actual port.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Serve accepts connections until the context is cancelled or the listener
// fails. Each accepted socket is attached to the hub, which owns it from
// then on. Listen must have been called first.
func (l *Listener) Serve(ctx context.Context) error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return bridge.NewError(bridge.KindConfiguration, "Serve called before Listen")
	}

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting editor connection: %w", err)
		}

		if tc, ok := conn.(*net.TCPConn); ok && l.keepAlive > 0 {
			_ = tc.SetKeepAlive(true)
			_ = tc.SetKeepAlivePeriod(l.keepAlive)
		}

		l.hub.Attach(conn)
	}
}

// Close stops accepting new connections. Sockets already attached to the hub
// are unaffected.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	err := l.ln.Close()
	l.ln = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
