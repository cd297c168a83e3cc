package config

import (
	"strings"
	"testing"
)

func validConfig() BridgeConfig {
	var cfg BridgeConfig
	cfg.SetDefaults()
	return cfg
}

func TestBridgeConfig_Validate_Defaults(t *testing.T) {
	cfg := validConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v, want nil", err)
	}
}

func TestBridgeConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BridgeConfig)
		wantSub string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *BridgeConfig) { c.Log.Level = "verbose" },
			wantSub: "must be one of",
		},
		{
			name:    "bad request timeout",
			mutate:  func(c *BridgeConfig) { c.Request.Timeout = "soon" },
			wantSub: "duration",
		},
		{
			name:    "negative list wait",
			mutate:  func(c *BridgeConfig) { c.Client.ListWait = "-3s" },
			wantSub: "duration",
		},
		{
			name:    "prefix with colon",
			mutate:  func(c *BridgeConfig) { c.Client.IDPrefix = "unity:dev" },
			wantSub: "must not contain",
		},
		{
			name:    "port out of range",
			mutate:  func(c *BridgeConfig) { c.TCP.Port = 70000 },
			wantSub: "at most",
		},
		{
			name:    "discovery port collides with tcp port",
			mutate:  func(c *BridgeConfig) { c.Discovery.Port = 27182 },
			wantSub: "must differ from tcp.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() = %q, want substring %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestBridgeConfig_Validate_EphemeralPortAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.TCP.Port = 0

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with port 0 = %v, want nil (ephemeral)", err)
	}
}

func TestBridgeConfig_Validate_ExplicitDiscoveryPort(t *testing.T) {
	cfg := validConfig()
	cfg.Discovery.Port = 31000

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
