package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Server attaches a Dispatcher to the bridge in listen mode: the editor
// opens a control endpoint and the bridge dials in. At most one control
// connection is live at a time; a newly accepted connection replaces the
// prior one, which is closed.
type Server struct {
	dispatcher *Dispatcher
	addr       string
	logger     *slog.Logger

	mu     sync.Mutex
	ln     net.Listener
	conn   net.Conn
	closed bool

	wg sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithListenAddr sets the control endpoint address. The default matches
// the bridge's own listener, DefaultBridgeAddr.
func WithListenAddr(addr string) ServerOption {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithServerLogger sets the logger used for connection lifecycle events.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer returns a listen-mode attachment for dispatcher.
func NewServer(dispatcher *Dispatcher, opts ...ServerOption) *Server {
	s := &Server{
		dispatcher: dispatcher,
		addr:       DefaultBridgeAddr,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the control endpoint. Binding is split from Serve so the
// caller can report the bound address before accepting.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("editor: bind control endpoint on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.logger.Info("editor control endpoint listening", "addr", ln.Addr().String())
	return nil
}

// Addr reports the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts control connections until ctx is cancelled or Close is
// called. It returns after every dispatch loop has drained.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("editor: Serve called before Listen")
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
			return
		}
		ln.Close()
		s.closeCurrent()
	}()

	defer func() {
		s.closeCurrent()
		s.wg.Wait()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("editor: accept control connection: %w", err)
		}
		s.adopt(ctx, conn)
	}
}

// Close stops the server, dropping the listener and any live control
// connection. Close is idempotent.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.ln
	conn := s.conn
	s.mu.Unlock()

	var err error
	if ln != nil {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	if conn != nil {
		conn.Close()
	}
	return err
}

// adopt installs conn as the current control connection, displacing and
// closing any prior one, and spawns its dispatch loop.
func (s *Server) adopt(ctx context.Context, conn net.Conn) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	prior := s.conn
	s.conn = conn
	s.mu.Unlock()

	if prior != nil {
		prior.Close()
		s.logger.Info("control connection replaced", "remote", conn.RemoteAddr().String())
	} else {
		s.logger.Info("control connection accepted", "remote", conn.RemoteAddr().String())
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer conn.Close()
		sess := &session{conn: conn, dispatcher: s.dispatcher, logger: s.logger}
		if err := sess.serve(ctx); err != nil {
			s.logger.Warn("control connection failed",
				"remote", conn.RemoteAddr().String(), "error", err)
		}
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
	}()
}

func (s *Server) closeCurrent() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
