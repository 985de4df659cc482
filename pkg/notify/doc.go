// Package notify implements multi-tenant notification dispatch: requests
// fan out to recipients across pluggable delivery channels, with per-tenant
// settings gating, optional deferred processing, live subscription updates
// and per-request delivery statistics.
//
// # Dispatch flow
//
// A NotificationRequest names targets (recipient groups), delivery methods
// and a notification type. ProcessRequest validates the methods against the
// tenant's Settings, persists the request, resolves recipients per target in
// bounded pages and sends one notification per (method, recipient) pair
// asynchronously. Duplicate pairs within one request fail fast; every
// outcome lands in a DeliveryStats snapshot stored with the request.
//
// A first-time request with a positive sending delay is stored as SCHEDULED
// and routed to the scheduler on the owning cluster node instead of being
// dispatched immediately.
//
// # Channels
//
// Delivery channels implement Channel and are supplied at construction. The
// Manager itself serves the websocket method: it persists a Notification and
// pushes a NotificationUpdate to the recipient's live subscribers, forwarding
// across cluster nodes when the recipient's partition lives elsewhere.
//
// # Usage
//
//	manager, err := notify.NewManager(notify.Dependencies{
//		Requests:      storage,
//		Notifications: storage,
//		Settings:      settingsProvider,
//		Templates:     templateProvider,
//		Recipients:    resolver,
//		Subscriptions: subs,
//		Channels:      []notify.Channel{emailChannel},
//	}, notify.WithNodeID("core-1"))
//	if err != nil {
//		return err
//	}
//	saved, err := manager.ProcessRequest(ctx, tenantID, request)
package notify
