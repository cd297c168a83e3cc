package handlers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/unity-mcp/unity-mcp-bridge/internal/domain/bridge"
)

// Manifest pre-sets handler enable flags at startup. Handlers not named stay
// enabled; runtime toggles are not persisted back.
type Manifest struct {
	Disabled []string `yaml:"disabled"`
}

// LoadManifest reads a YAML manifest from path. An empty path yields an
// empty manifest; a configured path that cannot be read is a configuration
// error.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return &Manifest{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bridge.WrapError(bridge.KindConfiguration,
			fmt.Sprintf("reading handler manifest %s", path), err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, bridge.WrapError(bridge.KindConfiguration,
			fmt.Sprintf("parsing handler manifest %s", path), err)
	}
	return &m, nil
}

// Flags converts the manifest into the registry's enablement map.
func (m *Manifest) Flags() map[string]bool {
	flags := make(map[string]bool, len(m.Disabled))
	for _, name := range m.Disabled {
		flags[name] = false
	}
	return flags
}
