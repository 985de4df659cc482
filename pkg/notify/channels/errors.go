package channels

import "errors"

var (
	// ErrInvalidConfig indicates a channel was constructed with missing or
	// malformed configuration.
	ErrInvalidConfig = errors.New("channels: invalid configuration")

	// ErrFailedToSendEmail wraps provider failures from the email channel.
	ErrFailedToSendEmail = errors.New("channels: failed to send email")

	// ErrRecipientHasNoEmail is returned when an email delivery is attempted
	// for a recipient without an email address.
	ErrRecipientHasNoEmail = errors.New("channels: recipient has no email address")

	// ErrWebhookDelivery wraps transport failures and non-2xx responses from
	// the webhook channel.
	ErrWebhookDelivery = errors.New("channels: webhook delivery failed")
)
