package notify

import (
	"context"

	"github.com/google/uuid"
)

// RequestStorage persists notification requests. Consumed as an opaque,
// possibly-failing collaborator.
type RequestStorage interface {
	// SaveRequest creates or updates a request, assigning an identity on
	// first save, and returns the persisted state.
	SaveRequest(ctx context.Context, request *NotificationRequest) (*NotificationRequest, error)

	// GetRequest fetches a request by id.
	GetRequest(ctx context.Context, tenantID, requestID uuid.UUID) (*NotificationRequest, error)

	// DeleteRequest removes a request.
	DeleteRequest(ctx context.Context, tenantID, requestID uuid.UUID) error

	// UpdateRequestStats persists a delivery stats snapshot for a request.
	UpdateRequestStats(ctx context.Context, tenantID, requestID uuid.UUID, stats StatsSnapshot) error
}

// NotificationStorage persists individual notifications.
type NotificationStorage interface {
	// SaveNotification stores a new notification and returns the persisted state.
	SaveNotification(ctx context.Context, tenantID uuid.UUID, notification Notification) (*Notification, error)

	// GetNotification fetches a notification by id.
	GetNotification(ctx context.Context, tenantID, notificationID uuid.UUID) (*Notification, error)

	// MarkNotificationRead transitions a notification SENT -> READ and
	// reports whether a transition occurred. Marking an already-READ
	// notification returns false with no mutation.
	MarkNotificationRead(ctx context.Context, tenantID, recipientID, notificationID uuid.UUID) (bool, error)
}

// SettingsProvider supplies per-tenant delivery method configuration.
type SettingsProvider interface {
	NotificationSettings(ctx context.Context, tenantID uuid.UUID) (*Settings, error)
}

// TemplateProvider resolves delivery-method-specific notification templates.
type TemplateProvider interface {
	// Template returns the template for the notification type and delivery
	// method, or ErrTemplateNotFound.
	Template(ctx context.Context, tenantID uuid.UUID, notificationType string, method DeliveryMethod) (*Template, error)
}

// RecipientResolver produces pages of recipients for a notification target,
// scoped to a tenant and optionally a customer (uuid.Nil means no customer
// scope). Pages are consumed sequentially per target; previous recipients are
// never revisited within one resolution pass.
type RecipientResolver interface {
	FindRecipients(ctx context.Context, tenantID, customerID, targetID uuid.UUID, link PageLink) (RecipientPage, error)
}
