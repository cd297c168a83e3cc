// Package discovery advertises the bridge's TCP endpoint over UDP broadcast
// so that editors on the local network can locate it without configuration.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/unity-mcp/unity-mcp-bridge/internal/port/outbound"
)

// protocolName identifies announcement datagrams to listening editors.
const protocolName = "mcp-bridge"

// announcement is the discovery payload. Field order is part of the wire
// format observed by editors.
type announcement struct {
	Type      string `json:"type"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Version   string `json:"version"`
	Protocol  string `json:"protocol"`
	Timestamp int64  `json:"timestamp"`
}

// Broadcaster implements outbound.Announcer with single-shot IPv4 UDP
// broadcasts. Each Announce opens a fresh socket on an ephemeral local port
// and closes it once the datagram is handed to the network stack.
type Broadcaster struct {
	target  string
	host    string
	port    int
	version string
	logger  *slog.Logger
}

var _ outbound.Announcer = (*Broadcaster)(nil)

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithTarget overrides the destination address. The default is the IPv4
// broadcast address on the discovery port.
func WithTarget(addr string) Option {
	return func(b *Broadcaster) {
		b.target = addr
	}
}

// NewBroadcaster creates a Broadcaster advertising host:port as the bridge's
// TCP endpoint, announcing on discoveryPort.
func NewBroadcaster(host string, port, discoveryPort int, version string, logger *slog.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		target:  fmt.Sprintf("255.255.255.255:%d", discoveryPort),
		host:    host,
		port:    port,
		version: version,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Announce sends exactly one datagram carrying reason as the announcement
// type. It is not a heartbeat; callers invoke it at startup and on client
// enumeration.
func (b *Broadcaster) Announce(ctx context.Context, reason string) error {
	payload, err := json.Marshal(announcement{
		Type:      reason,
		Host:      b.host,
		Port:      b.port,
		Version:   b.version,
		Protocol:  protocolName,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encoding announcement: %w", err)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp4", b.target)
	if err != nil {
		return fmt.Errorf("opening discovery socket: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("sending announcement to %s: %w", b.target, err)
	}

	b.logger.Debug("Sent discovery announcement",
		"target", b.target,
		"type", reason,
		"advertised_port", b.port)
	return nil
}
