package notify

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_Requests(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	ctx := context.Background()
	tenantID := testTenantID()

	saved, err := storage.SaveRequest(ctx, &NotificationRequest{
		TenantID:         tenantID,
		NotificationType: "TEST",
		Status:           RequestStatusProcessed,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	loaded, err := storage.GetRequest(ctx, tenantID, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, loaded.ID)

	// Tenant isolation.
	_, err = storage.GetRequest(ctx, uuid.New(), saved.ID)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	stats := StatsSnapshot{Sent: map[DeliveryMethod]int{DeliveryMethodWebsocket: 3}}
	require.NoError(t, storage.UpdateRequestStats(ctx, tenantID, saved.ID, stats))
	got, ok := storage.RequestStats(saved.ID)
	require.True(t, ok)
	assert.Equal(t, 3, got.Sent[DeliveryMethodWebsocket])

	require.NoError(t, storage.DeleteRequest(ctx, tenantID, saved.ID))
	assert.ErrorIs(t, storage.DeleteRequest(ctx, tenantID, saved.ID), ErrRequestNotFound)
	_, ok = storage.RequestStats(saved.ID)
	assert.False(t, ok)
}

func TestMemoryStorage_MarkNotificationRead(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	ctx := context.Background()
	tenantID := testTenantID()
	recipientID := uuid.New()

	saved, err := storage.SaveNotification(ctx, tenantID, Notification{
		RequestID:   uuid.New(),
		RecipientID: recipientID,
		Text:        "hi",
		Status:      NotificationStatusSent,
	})
	require.NoError(t, err)

	updated, err := storage.MarkNotificationRead(ctx, tenantID, recipientID, saved.ID)
	require.NoError(t, err)
	assert.True(t, updated)

	loaded, err := storage.GetNotification(ctx, tenantID, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, NotificationStatusRead, loaded.Status)

	// Second transition reports false without error.
	updated, err = storage.MarkNotificationRead(ctx, tenantID, recipientID, saved.ID)
	require.NoError(t, err)
	assert.False(t, updated)

	// Wrong recipient cannot mark someone else's notification.
	_, err = storage.MarkNotificationRead(ctx, tenantID, uuid.New(), saved.ID)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}
