package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ProcessingContext carries the per-request state shared by all send
// operations spawned for one notification request: the tenant settings in
// effect, a lazily-built template cache, and the delivery stats accumulator.
type ProcessingContext struct {
	TenantID uuid.UUID
	Request  *NotificationRequest
	Settings *Settings

	stats     *DeliveryStats
	templates TemplateProvider

	mu    sync.Mutex
	cache map[DeliveryMethod]*Template
}

// NewProcessingContext builds the shared state for one request's dispatch.
// Channel implementations receive it on every Send; tests for external
// channels can construct one directly.
func NewProcessingContext(tenantID uuid.UUID, request *NotificationRequest, settings *Settings, templates TemplateProvider) *ProcessingContext {
	return &ProcessingContext{
		TenantID:  tenantID,
		Request:   request,
		Settings:  settings,
		stats:     NewDeliveryStats(),
		templates: templates,
		cache:     make(map[DeliveryMethod]*Template),
	}
}

// Stats returns the delivery stats accumulator for the request.
func (c *ProcessingContext) Stats() *DeliveryStats {
	return c.stats
}

// Template resolves the template for the request's notification type and the
// given delivery method, fetching it at most once per method and caching the
// result for the lifetime of the request.
func (c *ProcessingContext) Template(ctx context.Context, method DeliveryMethod) (*Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tmpl, ok := c.cache[method]; ok {
		return tmpl, nil
	}
	tmpl, err := c.templates.Template(ctx, c.TenantID, c.Request.NotificationType, method)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve template for %s: %w", method, err)
	}
	if tmpl == nil {
		return nil, fmt.Errorf("%w: type %q, method %s", ErrTemplateNotFound, c.Request.NotificationType, method)
	}
	c.cache[method] = tmpl
	return tmpl, nil
}

// TemplateContext builds the substitution parameters for one recipient:
// recipient attributes merged with the request's info map. Request info wins
// on key collisions.
func (c *ProcessingContext) TemplateContext(recipient Recipient) map[string]string {
	params := map[string]string{
		"recipientEmail":     recipient.Email,
		"recipientFirstName": recipient.FirstName,
		"recipientLastName":  recipient.LastName,
	}
	for key, value := range c.Request.Info {
		params[key] = value
	}
	return params
}
