// Package config provides configuration loading for the Unity MCP bridge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for unity-mcp-bridge.yaml/.yml in standard
// locations. The search requires an explicit YAML extension to avoid matching the
// binary itself, which Viper's built-in SetConfigName would match (same base
// name, no extension).
func InitViper(configFile string) {
	// Load .env if present before Viper reads the environment. Values
	// already exported in the real environment win over file values.
	_ = godotenv.Load()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location.
		// Set name/type without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("unity-mcp-bridge")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: UNITY_MCP_TCP_HOST, UNITY_MCP_TCP_PORT, ...
	viper.SetEnvPrefix("UNITY_MCP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a unity-mcp-bridge config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".unity-mcp-bridge"),
	}
	if runtime.GOOS == "windows" {
		// %ProgramData%\unity-mcp-bridge (typically C:\ProgramData\unity-mcp-bridge)
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "unity-mcp-bridge"))
		}
	} else {
		paths = append(paths, "/etc/unity-mcp-bridge")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for unity-mcp-bridge.yaml
// or .yml. Returns the full path of the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "unity-mcp-bridge"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds all config keys for environment variable support.
// Example: UNITY_MCP_TCP_HOST overrides tcp.host
func bindNestedEnvKeys() {
	_ = viper.BindEnv("tcp.host")
	_ = viper.BindEnv("tcp.port")
	_ = viper.BindEnv("tcp.bind_all")

	_ = viper.BindEnv("discovery.enabled")
	_ = viper.BindEnv("discovery.port")

	_ = viper.BindEnv("client.id_prefix")
	_ = viper.BindEnv("client.list_wait")

	_ = viper.BindEnv("request.timeout")

	_ = viper.BindEnv("log.level")

	_ = viper.BindEnv("handlers.manifest")

	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates the result.
func LoadConfig() (*BridgeConfig, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but does
// NOT validate. Use this when CLI flags may override fields (e.g. --bind-all)
// before validation.
func LoadConfigRaw() (*BridgeConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only.
	}

	var cfg BridgeConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
