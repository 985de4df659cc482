package notify

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryStats_ReserveAndReport(t *testing.T) {
	t.Parallel()

	stats := NewDeliveryStats()
	recipientID := uuid.New()

	require.NoError(t, stats.Reserve(DeliveryMethodEmail, recipientID))
	assert.True(t, stats.Contains(DeliveryMethodEmail, recipientID))
	assert.False(t, stats.Contains(DeliveryMethodWebsocket, recipientID))

	stats.ReportSent(DeliveryMethodEmail, recipientID)

	snapshot := stats.Snapshot()
	assert.Equal(t, 1, snapshot.Sent[DeliveryMethodEmail])
	assert.Equal(t, 1, snapshot.TotalSent())
	assert.Zero(t, snapshot.TotalErrors())
}

func TestDeliveryStats_DuplicateReserve(t *testing.T) {
	t.Parallel()

	stats := NewDeliveryStats()
	recipientID := uuid.New()

	require.NoError(t, stats.Reserve(DeliveryMethodEmail, recipientID))
	stats.ReportSent(DeliveryMethodEmail, recipientID)

	// The duplicate fails without disturbing the recorded outcome.
	err := stats.Reserve(DeliveryMethodEmail, recipientID)
	assert.ErrorIs(t, err, ErrAlreadySent)

	snapshot := stats.Snapshot()
	assert.Equal(t, 1, snapshot.Sent[DeliveryMethodEmail])
	assert.Zero(t, snapshot.TotalErrors())

	// Same recipient through a different method is a distinct pair.
	assert.NoError(t, stats.Reserve(DeliveryMethodWebsocket, recipientID))
}

func TestDeliveryStats_ReportError(t *testing.T) {
	t.Parallel()

	stats := NewDeliveryStats()
	recipientID := uuid.New()

	require.NoError(t, stats.Reserve(DeliveryMethodEmail, recipientID))
	stats.ReportError(DeliveryMethodEmail, recipientID, errors.New("smtp connection refused"))

	snapshot := stats.Snapshot()
	assert.Zero(t, snapshot.TotalSent())
	assert.Equal(t, 1, snapshot.TotalErrors())
	assert.Equal(t, "smtp connection refused", snapshot.Errors[DeliveryMethodEmail][recipientID.String()])
}

func TestDeliveryStats_PendingExcludedFromSnapshot(t *testing.T) {
	t.Parallel()

	stats := NewDeliveryStats()
	require.NoError(t, stats.Reserve(DeliveryMethodEmail, uuid.New()))

	snapshot := stats.Snapshot()
	assert.Zero(t, snapshot.TotalSent())
	assert.Zero(t, snapshot.TotalErrors())
}

func TestDeliveryStats_ConcurrentReserveIsAtomic(t *testing.T) {
	t.Parallel()

	stats := NewDeliveryStats()
	recipientID := uuid.New()

	const attempts = 64
	var won atomic.Int32
	var wg sync.WaitGroup
	wg.Add(attempts)
	for range attempts {
		go func() {
			defer wg.Done()
			if stats.Reserve(DeliveryMethodEmail, recipientID) == nil {
				won.Add(1)
				stats.ReportSent(DeliveryMethodEmail, recipientID)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
	assert.Equal(t, 1, stats.Snapshot().TotalSent())
}
