// Package channels provides delivery channel implementations for the notify
// dispatcher: transactional email through Postmark and signed HTTP webhooks.
// Each channel implements notify.Channel and is registered with the manager
// at construction.
package channels
