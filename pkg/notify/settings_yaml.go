package notify

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// fileSettings is the YAML shape for per-tenant notification settings:
//
//	defaults:
//	  delivery_methods:
//	    WEBSOCKET: {enabled: true}
//	tenants:
//	  7f8b...-uuid:
//	    delivery_methods:
//	      EMAIL: {enabled: true}
type fileSettings struct {
	Defaults *Settings            `yaml:"defaults"`
	Tenants  map[string]*Settings `yaml:"tenants"`
}

// LoadSettingsFile reads per-tenant notification settings from a YAML file
// and returns a provider serving them. Tenants absent from the file fall
// back to the defaults section, if present.
func LoadSettingsFile(path string) (*StaticSettingsProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var parsed fileSettings
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	byTenant := make(map[uuid.UUID]*Settings, len(parsed.Tenants))
	for key, settings := range parsed.Tenants {
		tenantID, err := uuid.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("invalid tenant id %q in settings file: %w", key, err)
		}
		byTenant[tenantID] = settings
	}

	provider := NewStaticSettingsProvider(byTenant)
	if parsed.Defaults != nil {
		provider.SetFallback(parsed.Defaults)
	}
	return provider, nil
}
