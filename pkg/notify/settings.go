package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// StaticSettingsProvider serves notification settings from an in-memory
// per-tenant table with an optional fallback applied to unknown tenants.
type StaticSettingsProvider struct {
	mu       sync.RWMutex
	byTenant map[uuid.UUID]*Settings
	fallback *Settings
}

// NewStaticSettingsProvider builds a provider over the given per-tenant
// settings. Tenants without an entry get ErrSettingsNotFound unless a
// fallback is set.
func NewStaticSettingsProvider(byTenant map[uuid.UUID]*Settings) *StaticSettingsProvider {
	if byTenant == nil {
		byTenant = make(map[uuid.UUID]*Settings)
	}
	return &StaticSettingsProvider{byTenant: byTenant}
}

// SetFallback sets the settings returned for tenants without an entry.
func (p *StaticSettingsProvider) SetFallback(settings *Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = settings
}

// SetTenant replaces the settings of one tenant.
func (p *StaticSettingsProvider) SetTenant(tenantID uuid.UUID, settings *Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byTenant[tenantID] = settings
}

func (p *StaticSettingsProvider) NotificationSettings(_ context.Context, tenantID uuid.UUID) (*Settings, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if settings, ok := p.byTenant[tenantID]; ok {
		return settings, nil
	}
	if p.fallback != nil {
		return p.fallback, nil
	}
	return nil, ErrSettingsNotFound
}

// EnableAll returns settings with every given delivery method enabled.
// Convenience for bootstrapping and tests.
func EnableAll(methods ...DeliveryMethod) *Settings {
	configured := make(map[DeliveryMethod]DeliveryMethodConfig, len(methods))
	for _, method := range methods {
		configured[method] = DeliveryMethodConfig{Enabled: true}
	}
	return &Settings{DeliveryMethods: configured}
}
