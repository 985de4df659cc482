package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/hl1221hl/thingsboard/pkg/broadcast"
	"github.com/hl1221hl/thingsboard/pkg/cache"
	"github.com/hl1221hl/thingsboard/pkg/logger"
)

// SubscriptionManager receives notification and request updates for sessions
// hosted on this node.
type SubscriptionManager interface {
	OnNotificationUpdate(ctx context.Context, tenantID, recipientID uuid.UUID, update NotificationUpdate)
	OnRequestUpdate(ctx context.Context, tenantID uuid.UUID, update RequestUpdate)
}

const (
	defaultMaxBroadcasters = 10000
	defaultUpdateBuffer    = 32
)

// LocalSubscriptionManager fans updates out to in-process subscribers. It
// keeps one broadcaster per recipient (notification updates) and one per
// tenant (request updates), bounded by an LRU so idle entries are evicted and
// their subscribers closed.
type LocalSubscriptionManager struct {
	mu         sync.Mutex // guards get-or-create on both caches
	recipients *cache.LRUCache[uuid.UUID, broadcast.Broadcaster[NotificationUpdate]]
	tenants    *cache.LRUCache[uuid.UUID, broadcast.Broadcaster[RequestUpdate]]
	buffer     int
	log        *slog.Logger
}

// SubscriptionOption customizes a LocalSubscriptionManager.
type SubscriptionOption func(*LocalSubscriptionManager)

// WithSubscriptionLogger sets the logger for dropped-update diagnostics.
func WithSubscriptionLogger(log *slog.Logger) SubscriptionOption {
	return func(m *LocalSubscriptionManager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithUpdateBuffer sets the per-subscriber channel buffer size.
func WithUpdateBuffer(size int) SubscriptionOption {
	return func(m *LocalSubscriptionManager) {
		if size > 0 {
			m.buffer = size
		}
	}
}

// NewLocalSubscriptionManager creates a subscription manager keeping at most
// maxBroadcasters live broadcasters per dimension. Zero or negative uses a
// default.
func NewLocalSubscriptionManager(maxBroadcasters int, opts ...SubscriptionOption) *LocalSubscriptionManager {
	if maxBroadcasters <= 0 {
		maxBroadcasters = defaultMaxBroadcasters
	}

	m := &LocalSubscriptionManager{
		recipients: cache.NewLRUCache[uuid.UUID, broadcast.Broadcaster[NotificationUpdate]](maxBroadcasters),
		tenants:    cache.NewLRUCache[uuid.UUID, broadcast.Broadcaster[RequestUpdate]](maxBroadcasters),
		buffer:     defaultUpdateBuffer,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.recipients.SetEvictCallback(func(_ uuid.UUID, b broadcast.Broadcaster[NotificationUpdate]) {
		_ = b.Close()
	})
	m.tenants.SetEvictCallback(func(_ uuid.UUID, b broadcast.Broadcaster[RequestUpdate]) {
		_ = b.Close()
	})
	return m
}

// SubscribeNotifications subscribes to updates for one recipient's
// notifications. The subscription ends when ctx is canceled or the returned
// subscriber is closed.
func (m *LocalSubscriptionManager) SubscribeNotifications(ctx context.Context, recipientID uuid.UUID) broadcast.Subscriber[NotificationUpdate] {
	return m.recipientBroadcaster(recipientID).Subscribe(ctx)
}

// SubscribeRequests subscribes to request updates for one tenant.
func (m *LocalSubscriptionManager) SubscribeRequests(ctx context.Context, tenantID uuid.UUID) broadcast.Subscriber[RequestUpdate] {
	return m.tenantBroadcaster(tenantID).Subscribe(ctx)
}

// OnNotificationUpdate delivers the update to the recipient's subscribers.
func (m *LocalSubscriptionManager) OnNotificationUpdate(ctx context.Context, tenantID, recipientID uuid.UUID, update NotificationUpdate) {
	if err := m.recipientBroadcaster(recipientID).Broadcast(ctx, update); err != nil {
		m.log.LogAttrs(ctx, slog.LevelWarn, "Failed to broadcast notification update",
			logger.TenantID(tenantID), logger.RecipientID(recipientID), logger.Error(err))
	}
}

// OnRequestUpdate delivers the update to the tenant's subscribers.
func (m *LocalSubscriptionManager) OnRequestUpdate(ctx context.Context, tenantID uuid.UUID, update RequestUpdate) {
	if err := m.tenantBroadcaster(tenantID).Broadcast(ctx, update); err != nil {
		m.log.LogAttrs(ctx, slog.LevelWarn, "Failed to broadcast request update",
			logger.TenantID(tenantID), logger.RequestID(update.RequestID), logger.Error(err))
	}
}

// Close shuts down all broadcasters and their subscribers.
func (m *LocalSubscriptionManager) Close() error {
	m.recipients.Clear()
	m.tenants.Clear()
	return nil
}

func (m *LocalSubscriptionManager) recipientBroadcaster(recipientID uuid.UUID) broadcast.Broadcaster[NotificationUpdate] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.recipients.Get(recipientID); ok {
		return b
	}
	b := broadcast.NewMemoryBroadcaster[NotificationUpdate](m.buffer)
	m.recipients.Put(recipientID, b)
	return b
}

func (m *LocalSubscriptionManager) tenantBroadcaster(tenantID uuid.UUID) broadcast.Broadcaster[RequestUpdate] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.tenants.Get(tenantID); ok {
		return b
	}
	b := broadcast.NewMemoryBroadcaster[RequestUpdate](m.buffer)
	m.tenants.Put(tenantID, b)
	return b
}
