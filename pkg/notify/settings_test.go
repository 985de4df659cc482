package notify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSettingsProvider(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	provider := NewStaticSettingsProvider(map[uuid.UUID]*Settings{
		tenantID: EnableAll(DeliveryMethodEmail),
	})

	settings, err := provider.NotificationSettings(context.Background(), tenantID)
	require.NoError(t, err)
	assert.True(t, settings.DeliveryMethods[DeliveryMethodEmail].Enabled)

	_, err = provider.NotificationSettings(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSettingsNotFound)

	provider.SetFallback(EnableAll(DeliveryMethodWebsocket))
	settings, err = provider.NotificationSettings(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, settings.DeliveryMethods[DeliveryMethodWebsocket].Enabled)
	assert.False(t, settings.DeliveryMethods[DeliveryMethodEmail].Enabled)
}

func TestLoadSettingsFile(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	content := `
defaults:
  delivery_methods:
    WEBSOCKET: {enabled: true}
tenants:
  ` + tenantID.String() + `:
    delivery_methods:
      EMAIL: {enabled: true}
      SMS: {enabled: false}
`
	path := filepath.Join(t.TempDir(), "notifications.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	provider, err := LoadSettingsFile(path)
	require.NoError(t, err)

	settings, err := provider.NotificationSettings(context.Background(), tenantID)
	require.NoError(t, err)
	assert.True(t, settings.DeliveryMethods[DeliveryMethodEmail].Enabled)
	assert.False(t, settings.DeliveryMethods[DeliveryMethodSMS].Enabled)

	fallback, err := provider.NotificationSettings(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, fallback.DeliveryMethods[DeliveryMethodWebsocket].Enabled)
}

func TestLoadSettingsFile_InvalidTenantID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notifications.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tenants:\n  not-a-uuid:\n    delivery_methods: {}\n"), 0o600))

	_, err := LoadSettingsFile(path)
	assert.Error(t, err)
}
