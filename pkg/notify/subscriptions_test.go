package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSubscriptionManager_NotificationUpdates(t *testing.T) {
	t.Parallel()

	m := NewLocalSubscriptionManager(10)
	defer m.Close()

	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	aliceSub := m.SubscribeNotifications(ctx, alice)
	defer aliceSub.Close()
	bobSub := m.SubscribeNotifications(ctx, bob)
	defer bobSub.Close()

	m.OnNotificationUpdate(ctx, testTenantID(), alice, NotificationUpdate{
		Notification: &Notification{Text: "for alice"},
		IsNew:        true,
	})

	select {
	case update := <-aliceSub.Receive(ctx):
		assert.Equal(t, "for alice", update.Notification.Text)
	case <-time.After(time.Second):
		t.Fatal("alice never received her update")
	}

	// Updates are scoped per recipient.
	select {
	case <-bobSub.Receive(ctx):
		t.Fatal("bob received an update addressed to alice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalSubscriptionManager_RequestUpdates(t *testing.T) {
	t.Parallel()

	m := NewLocalSubscriptionManager(10)
	defer m.Close()

	ctx := context.Background()
	sub := m.SubscribeRequests(ctx, testTenantID())
	defer sub.Close()

	requestID := uuid.New()
	m.OnRequestUpdate(ctx, testTenantID(), RequestUpdate{RequestID: requestID, Deleted: true})

	select {
	case update := <-sub.Receive(ctx):
		assert.Equal(t, requestID, update.RequestID)
		assert.True(t, update.Deleted)
	case <-time.After(time.Second):
		t.Fatal("no request update received")
	}
}

func TestLocalSubscriptionManager_EvictionClosesSubscribers(t *testing.T) {
	t.Parallel()

	// Capacity of one: the second recipient evicts the first.
	m := NewLocalSubscriptionManager(1)
	defer m.Close()

	ctx := context.Background()
	first := m.SubscribeNotifications(ctx, uuid.New())
	_ = m.SubscribeNotifications(ctx, uuid.New())

	select {
	case _, open := <-first.Receive(ctx):
		require.False(t, open, "evicted subscriber channel must be closed")
	case <-time.After(time.Second):
		t.Fatal("evicted subscriber was not closed")
	}
}
