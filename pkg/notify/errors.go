package notify

import "errors"

var (
	// ErrDeliveryMethodNotEnabled is returned synchronously from request
	// submission when a requested delivery method is missing from or
	// disabled in the tenant's notification settings.
	ErrDeliveryMethodNotEnabled = errors.New("notify: delivery method is not enabled or configured")

	// ErrAlreadySent signals a duplicate send attempt for a
	// (delivery method, recipient) pair within one request.
	ErrAlreadySent = errors.New("notify: notification already sent to recipient via this delivery method")

	// ErrChannelNotRegistered is recorded when a delivery method passes the
	// settings gate but no channel implementation serves it.
	ErrChannelNotRegistered = errors.New("notify: no channel registered for delivery method")

	// ErrTemplateNotFound is returned when the template collaborator has no
	// template for the requested notification type and delivery method.
	ErrTemplateNotFound = errors.New("notify: notification template not found")

	// ErrRequestNotFound is returned by storages when a notification request
	// does not exist.
	ErrRequestNotFound = errors.New("notify: notification request not found")

	// ErrNotificationNotFound is returned by storages when a notification
	// does not exist.
	ErrNotificationNotFound = errors.New("notify: notification not found")

	// ErrSettingsNotFound is returned when no notification settings exist
	// for a tenant.
	ErrSettingsNotFound = errors.New("notify: notification settings not found for tenant")

	// ErrMissingDependency is returned by NewManager when a required
	// collaborator is nil.
	ErrMissingDependency = errors.New("notify: missing required dependency")
)
