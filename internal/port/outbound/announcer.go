// Package outbound defines the outbound port interfaces for the bridge.
package outbound

import "context"

// Announcer is the outbound port for the discovery announcement that tells
// editors on the LAN where the bridge's TCP endpoint lives. Each call sends
// exactly one datagram; the announcement is not a heartbeat.
type Announcer interface {
	// Announce broadcasts one discovery payload. The reason distinguishes
	// a startup announcement from an on-demand one (e.g. "listClients").
	Announce(ctx context.Context, reason string) error
}
