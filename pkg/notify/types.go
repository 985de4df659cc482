package notify

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryMethod identifies a channel kind through which notifications are sent.
type DeliveryMethod string

const (
	// DeliveryMethodWebsocket delivers to live in-app subscribers. The
	// channel for this method is provided by the dispatch manager itself.
	DeliveryMethodWebsocket DeliveryMethod = "WEBSOCKET"
	DeliveryMethodEmail     DeliveryMethod = "EMAIL"
	DeliveryMethodSMS       DeliveryMethod = "SMS"
	DeliveryMethodWebhook   DeliveryMethod = "WEBHOOK"
)

// RequestStatus is the lifecycle status of a notification request.
// A status is set exactly once per transition and never reverted.
type RequestStatus string

const (
	RequestStatusScheduled RequestStatus = "SCHEDULED"
	RequestStatusProcessed RequestStatus = "PROCESSED"
)

// NotificationStatus is the read-state of a delivered notification.
// Transitions one way: SENT -> READ.
type NotificationStatus string

const (
	NotificationStatusSent NotificationStatus = "SENT"
	NotificationStatusRead NotificationStatus = "READ"
)

// Recipient is a user resolved from a notification target.
type Recipient struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	CustomerID uuid.UUID `json:"customer_id,omitempty"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
}

// RequestConfig carries optional scheduling configuration for a request.
type RequestConfig struct {
	// SendingDelaySec defers processing by the given number of seconds.
	// Only honored on first submission (a request without identity).
	SendingDelaySec int `json:"sending_delay_sec"`
}

// NotificationRequest is a unit of work describing recipients (via targets),
// delivery methods, and optional scheduling. Owned by the storage
// collaborator; mutated only through explicit save/update calls.
type NotificationRequest struct {
	ID               uuid.UUID         `json:"id"`
	TenantID         uuid.UUID         `json:"tenant_id"`
	CustomerID       uuid.UUID         `json:"customer_id,omitempty"`
	Targets          []uuid.UUID       `json:"targets"`
	DeliveryMethods  []DeliveryMethod  `json:"delivery_methods"`
	NotificationType string            `json:"notification_type"`
	Info             map[string]string `json:"info,omitempty"`
	OriginatorType   string            `json:"originator_type,omitempty"`
	Config           *RequestConfig    `json:"config,omitempty"`
	Status           RequestStatus     `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Notification is one delivered message instance to one recipient.
type Notification struct {
	ID             uuid.UUID          `json:"id"`
	RequestID      uuid.UUID          `json:"request_id"`
	RecipientID    uuid.UUID          `json:"recipient_id"`
	Type           string             `json:"type"`
	Text           string             `json:"text"`
	Info           map[string]string  `json:"info,omitempty"`
	OriginatorType string             `json:"originator_type,omitempty"`
	Status         NotificationStatus `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
}

// DeliveryMethodConfig is the per-method part of tenant notification settings.
type DeliveryMethodConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Settings is the per-tenant mapping from delivery method to its
// configuration. Read-only to this package; owned by a settings collaborator.
type Settings struct {
	DeliveryMethods map[DeliveryMethod]DeliveryMethodConfig `json:"delivery_methods" yaml:"delivery_methods"`
}

// PageLink addresses one page of a paginated recipient resolution.
type PageLink struct {
	Page     int
	PageSize int
}

// RecipientPage is one bounded page of recipients resolved from a target.
type RecipientPage struct {
	Recipients []Recipient
	HasNext    bool
}
