// Package config provides the configuration schema for the Unity MCP bridge.
//
// Configuration is intentionally small: a handful of keys loaded from an
// optional YAML file, overridable through UNITY_MCP_* environment variables
// and a couple of CLI flags. Anything an editor client needs beyond this is
// negotiated at registration time, not configured here.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Defaults shared by the loader and the CLI flag definitions.
const (
	DefaultTCPHost        = "127.0.0.1"
	DefaultTCPPort        = 27182
	DefaultIDPrefix       = "unity"
	DefaultListWait       = "3s"
	DefaultRequestTimeout = "30s"
	DefaultLogLevel       = "info"
)

// BridgeConfig is the top-level configuration for the bridge process.
type BridgeConfig struct {
	// TCP configures the listener that editor clients dial into.
	TCP TCPConfig `yaml:"tcp" mapstructure:"tcp"`

	// Discovery configures the single-shot UDP announcement emitted at
	// startup so editors on the LAN can find the bridge.
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`

	// Client configures how connecting editors are identified.
	Client ClientConfig `yaml:"client" mapstructure:"client"`

	// Request configures command routing toward editors.
	Request RequestConfig `yaml:"request" mapstructure:"request"`

	// Log configures the structured logger (always written to stderr;
	// stdout belongs to the MCP stdio transport).
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// Handlers points at an optional manifest that enables or disables
	// individual handlers by name.
	Handlers HandlersConfig `yaml:"handlers" mapstructure:"handlers"`

	// DevMode enables development conveniences (debug logging).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// TCPConfig configures the editor-facing TCP listener.
type TCPConfig struct {
	// Host is the interface to bind (e.g. "127.0.0.1").
	// Defaults to loopback; see BindAll for exposing the listener.
	Host string `yaml:"host" mapstructure:"host" validate:"omitempty,ip|hostname"`

	// Port is the TCP port editors connect to. Defaults to 27182.
	// Zero requests an ephemeral port (useful for tests).
	Port int `yaml:"port" mapstructure:"port" validate:"omitempty,min=0,max=65535"`

	// BindAll overrides Host with "0.0.0.0" so editors on other machines
	// can reach the bridge. Off by default: the wire protocol carries no
	// authentication, so exposure beyond loopback is opt-in.
	BindAll bool `yaml:"bind_all" mapstructure:"bind_all"`
}

// ListenAddr returns the effective host:port to bind, honoring BindAll.
func (t TCPConfig) ListenAddr() string {
	host := t.Host
	if host == "" {
		host = DefaultTCPHost
	}
	if t.BindAll {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, t.Port)
}

// DiscoveryConfig configures the startup UDP broadcast.
type DiscoveryConfig struct {
	// Enabled turns the announcement on or off. Defaults to true.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Port is the UDP port the announcement is broadcast to.
	// Zero derives it from the TCP port (tcp.port + 1, i.e. 27183 by
	// default) so both sides agree without extra configuration.
	Port int `yaml:"port" mapstructure:"port" validate:"omitempty,min=0,max=65535"`
}

// BroadcastPort returns the effective UDP port given the bound TCP port.
func (d DiscoveryConfig) BroadcastPort(tcpPort int) int {
	if d.Port != 0 {
		return d.Port
	}
	return tcpPort + 1
}

// ClientConfig configures editor client identification.
type ClientConfig struct {
	// IDPrefix is prepended to address-derived client IDs, producing
	// identifiers like "unity-127.0.0.1:55500". Defaults to "unity".
	IDPrefix string `yaml:"id_prefix" mapstructure:"id_prefix" validate:"omitempty,excludesall=0x3A0x20"`

	// ListWait is how long client enumeration waits after sending the
	// discovery announcement before reporting connected editors (e.g. "3s").
	ListWait string `yaml:"list_wait" mapstructure:"list_wait" validate:"omitempty,duration"`
}

// ListWaitDuration returns the parsed wait, falling back to the default.
func (c ClientConfig) ListWaitDuration() time.Duration {
	return parseDurationOr(c.ListWait, DefaultListWait)
}

// RequestConfig configures routed command requests.
type RequestConfig struct {
	// Timeout bounds how long a routed request waits for the editor's
	// response before failing (e.g. "30s").
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`
}

// TimeoutDuration returns the parsed timeout, falling back to the default.
func (r RequestConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(r.Timeout, DefaultRequestTimeout)
}

// LogConfig configures logging.
type LogConfig struct {
	// Level sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info". DevMode=true overrides to "debug".
	Level string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// HandlersConfig configures per-handler enablement.
type HandlersConfig struct {
	// Manifest is the path to an optional YAML file mapping handler names
	// to enabled flags. Handlers absent from the manifest stay enabled.
	Manifest string `yaml:"manifest" mapstructure:"manifest"`
}

// SetDefaults applies default values for optional fields.
func (c *BridgeConfig) SetDefaults() {
	if c.TCP.Host == "" {
		c.TCP.Host = DefaultTCPHost
	}
	// viper.IsSet distinguishes "not set" (zero value) from an explicit 0,
	// which requests an ephemeral port.
	if c.TCP.Port == 0 && !viper.IsSet("tcp.port") {
		c.TCP.Port = DefaultTCPPort
	}

	// Discovery defaults on; explicit false in YAML/env wins.
	if !viper.IsSet("discovery.enabled") {
		c.Discovery.Enabled = true
	}

	if c.Client.IDPrefix == "" {
		c.Client.IDPrefix = DefaultIDPrefix
	}
	if c.Client.ListWait == "" {
		c.Client.ListWait = DefaultListWait
	}

	if c.Request.Timeout == "" {
		c.Request.Timeout = DefaultRequestTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.DevMode {
		c.Log.Level = "debug"
	}
}

func parseDurationOr(s, fallback string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}
