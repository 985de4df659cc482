package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl1221hl/thingsboard/pkg/cluster"
)

func testTenantID() uuid.UUID {
	return uuid.MustParse("11111111-2222-3333-4444-555555555555")
}

type recordingChannel struct {
	method DeliveryMethod
	err    error

	mu   sync.Mutex
	sent []Recipient
}

func (c *recordingChannel) DeliveryMethod() DeliveryMethod { return c.method }

func (c *recordingChannel) Send(_ context.Context, recipient Recipient, _ string, _ *ProcessingContext) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, recipient)
	return nil
}

func (c *recordingChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type recordingScheduler struct {
	mu   sync.Mutex
	msgs []cluster.SchedulerMsg
}

func (s *recordingScheduler) HandleSchedulerMsg(_ context.Context, msg cluster.SchedulerMsg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingScheduler) received() []cluster.SchedulerMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cluster.SchedulerMsg(nil), s.msgs...)
}

type fixture struct {
	storage   *MemoryStorage
	resolver  *StaticRecipientResolver
	templates *StaticTemplateProvider
	settings  *StaticSettingsProvider
	subs      *LocalSubscriptionManager
	manager   *Manager
}

func newFixture(t *testing.T, channels []Channel, opts ...ManagerOption) *fixture {
	t.Helper()

	f := &fixture{
		storage:   NewMemoryStorage(),
		resolver:  NewStaticRecipientResolver(nil),
		templates: NewStaticTemplateProvider(),
		settings:  NewStaticSettingsProvider(nil),
		subs:      NewLocalSubscriptionManager(100),
	}
	f.settings.SetFallback(EnableAll(
		DeliveryMethodWebsocket, DeliveryMethodEmail, DeliveryMethodSMS, DeliveryMethodWebhook))
	f.templates.SetTemplate("TEST", DeliveryMethodWebsocket, Template{Body: "Hello ${recipientFirstName}"})
	f.templates.SetTemplate("TEST", DeliveryMethodEmail, Template{Subject: "Alert", Body: "Dear ${recipientFirstName}"})

	manager, err := NewManager(Dependencies{
		Requests:      f.storage,
		Notifications: f.storage,
		Settings:      f.settings,
		Templates:     f.templates,
		Recipients:    f.resolver,
		Subscriptions: f.subs,
		Channels:      channels,
	}, opts...)
	require.NoError(t, err)
	f.manager = manager

	t.Cleanup(func() {
		require.NoError(t, manager.Close())
		require.NoError(t, f.subs.Close())
	})
	return f
}

func (f *fixture) addTarget(recipients ...Recipient) uuid.UUID {
	targetID := uuid.New()
	f.resolver.SetTarget(targetID, recipients)
	return targetID
}

func newRecipient(name string) Recipient {
	return Recipient{
		ID:        uuid.New(),
		TenantID:  testTenantID(),
		Email:     name + "@example.com",
		FirstName: name,
	}
}

func newRequest(targets []uuid.UUID, methods ...DeliveryMethod) *NotificationRequest {
	return &NotificationRequest{
		Targets:          targets,
		DeliveryMethods:  methods,
		NotificationType: "TEST",
		Info:             map[string]string{"alarmType": "HighTemperature"},
	}
}

func TestNewManager_MissingDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewManager(Dependencies{})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestManager_ProcessRequest_RejectsDisabledMethod(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.settings.SetTenant(testTenantID(), EnableAll(DeliveryMethodWebsocket))

	request := newRequest([]uuid.UUID{uuid.New()}, DeliveryMethodWebsocket, DeliveryMethodEmail)
	saved, err := f.manager.ProcessRequest(context.Background(), testTenantID(), request)

	assert.ErrorIs(t, err, ErrDeliveryMethodNotEnabled)
	assert.Nil(t, saved)
	assert.Equal(t, uuid.Nil, request.ID)
}

func TestManager_ProcessRequest_SchedulesDelayedRequest(t *testing.T) {
	t.Parallel()

	scheduler := &recordingScheduler{}
	f := newFixture(t, nil, WithSchedulerHandler(scheduler))

	recipient := newRecipient("alice")
	request := newRequest([]uuid.UUID{f.addTarget(recipient)}, DeliveryMethodWebsocket)
	request.Config = &RequestConfig{SendingDelaySec: 30}

	saved, err := f.manager.ProcessRequest(context.Background(), testTenantID(), request)
	require.NoError(t, err)
	require.NotNil(t, saved)

	assert.Equal(t, RequestStatusScheduled, saved.Status)
	assert.NotEqual(t, uuid.Nil, saved.ID)

	require.Eventually(t, func() bool {
		return len(scheduler.received()) == 1
	}, time.Second, 10*time.Millisecond)

	msg := scheduler.received()[0]
	assert.Equal(t, testTenantID(), msg.TenantID())
	assert.Equal(t, saved.ID, msg.RequestID())

	// Scheduled requests are not dispatched.
	assert.Empty(t, f.storage.NotificationsForRecipient(recipient.ID))
}

func TestManager_ProcessRequest_DelayOnlyHonoredOnFirstSubmission(t *testing.T) {
	t.Parallel()

	scheduler := &recordingScheduler{}
	f := newFixture(t, nil, WithSchedulerHandler(scheduler))

	recipient := newRecipient("alice")
	request := newRequest([]uuid.UUID{f.addTarget(recipient)}, DeliveryMethodWebsocket)
	request.ID = uuid.New() // resubmission of a scheduled request
	request.Config = &RequestConfig{SendingDelaySec: 30}

	saved, err := f.manager.ProcessRequest(context.Background(), testTenantID(), request)
	require.NoError(t, err)

	assert.Equal(t, RequestStatusProcessed, saved.Status)
	require.Eventually(t, func() bool {
		return len(f.storage.NotificationsForRecipient(recipient.ID)) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, scheduler.received())
}

func TestManager_ProcessRequest_DispatchesWebsocket(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	alice := newRecipient("alice")
	bob := newRecipient("bob")
	request := newRequest([]uuid.UUID{f.addTarget(alice, bob)}, DeliveryMethodWebsocket)

	ctx := context.Background()
	sub := f.subs.SubscribeNotifications(ctx, alice.ID)
	defer sub.Close()

	saved, err := f.manager.ProcessRequest(ctx, testTenantID(), request)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusProcessed, saved.Status)

	select {
	case update := <-sub.Receive(ctx):
		require.NotNil(t, update.Notification)
		assert.True(t, update.IsNew)
		assert.Equal(t, "Hello alice", update.Notification.Text)
		assert.Equal(t, NotificationStatusSent, update.Notification.Status)
		assert.Equal(t, saved.ID, update.Notification.RequestID)
	case <-time.After(time.Second):
		t.Fatal("no notification update received")
	}

	require.Eventually(t, func() bool {
		stats, ok := f.storage.RequestStats(saved.ID)
		return ok && stats.Sent[DeliveryMethodWebsocket] == 2
	}, time.Second, 10*time.Millisecond)

	assert.Len(t, f.storage.NotificationsForRecipient(alice.ID), 1)
	assert.Len(t, f.storage.NotificationsForRecipient(bob.ID), 1)
}

func TestManager_ProcessRequest_DuplicateRecipientAcrossTargets(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	alice := newRecipient("alice")
	bob := newRecipient("bob")
	targetOne := f.addTarget(alice, bob)
	targetTwo := f.addTarget(alice) // alice appears twice

	request := newRequest([]uuid.UUID{targetOne, targetTwo}, DeliveryMethodWebsocket)
	saved, err := f.manager.ProcessRequest(context.Background(), testTenantID(), request)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stats, ok := f.storage.RequestStats(saved.ID)
		return ok && stats.Sent[DeliveryMethodWebsocket] == 2
	}, time.Second, 10*time.Millisecond)

	assert.Len(t, f.storage.NotificationsForRecipient(alice.ID), 1)
	assert.Len(t, f.storage.NotificationsForRecipient(bob.ID), 1)
}

func TestManager_ProcessRequest_ChannelFailureRecorded(t *testing.T) {
	t.Parallel()

	email := &recordingChannel{method: DeliveryMethodEmail, err: errors.New("smtp down")}
	f := newFixture(t, []Channel{email})

	alice := newRecipient("alice")
	request := newRequest([]uuid.UUID{f.addTarget(alice)}, DeliveryMethodWebsocket, DeliveryMethodEmail)

	saved, err := f.manager.ProcessRequest(context.Background(), testTenantID(), request)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stats, ok := f.storage.RequestStats(saved.ID)
		return ok && stats.TotalSent()+stats.TotalErrors() == 2
	}, time.Second, 10*time.Millisecond)

	stats, _ := f.storage.RequestStats(saved.ID)
	assert.Equal(t, 1, stats.Sent[DeliveryMethodWebsocket])
	assert.Equal(t, "smtp down", stats.Errors[DeliveryMethodEmail][alice.ID.String()])
}

func TestManager_ProcessRequest_MissingChannelRecorded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	alice := newRecipient("alice")
	request := newRequest([]uuid.UUID{f.addTarget(alice)}, DeliveryMethodSMS)

	saved, err := f.manager.ProcessRequest(context.Background(), testTenantID(), request)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stats, ok := f.storage.RequestStats(saved.ID)
		return ok && stats.TotalErrors() == 1
	}, time.Second, 10*time.Millisecond)

	stats, _ := f.storage.RequestStats(saved.ID)
	assert.Contains(t, stats.Errors[DeliveryMethodSMS][alice.ID.String()], "no channel registered")
}

func TestManager_ProcessRequest_MissingTemplateRecorded(t *testing.T) {
	t.Parallel()

	email := &recordingChannel{method: DeliveryMethodEmail}
	f := newFixture(t, []Channel{email})

	alice := newRecipient("alice")
	request := newRequest([]uuid.UUID{f.addTarget(alice)}, DeliveryMethodEmail)
	request.NotificationType = "UNTEMPLATED"

	saved, err := f.manager.ProcessRequest(context.Background(), testTenantID(), request)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stats, ok := f.storage.RequestStats(saved.ID)
		return ok && stats.TotalErrors() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, email.sentCount())
}

func TestManager_MarkNotificationRead(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	alice := newRecipient("alice")
	notification, err := f.storage.SaveNotification(ctx, testTenantID(), Notification{
		RequestID:   uuid.New(),
		RecipientID: alice.ID,
		Type:        "TEST",
		Text:        "hi",
		Status:      NotificationStatusSent,
	})
	require.NoError(t, err)

	sub := f.subs.SubscribeNotifications(ctx, alice.ID)
	defer sub.Close()

	require.NoError(t, f.manager.MarkNotificationRead(ctx, testTenantID(), alice.ID, notification.ID))

	select {
	case update := <-sub.Receive(ctx):
		assert.False(t, update.IsNew)
		assert.Equal(t, NotificationStatusRead, update.Notification.Status)
	case <-time.After(time.Second):
		t.Fatal("no read update received")
	}

	// Second read is a no-op with no extra update.
	require.NoError(t, f.manager.MarkNotificationRead(ctx, testTenantID(), alice.ID, notification.ID))
	select {
	case <-sub.Receive(ctx):
		t.Fatal("unexpected update for an already-read notification")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_DeleteRequest_BroadcastsDeletion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	saved, err := f.storage.SaveRequest(ctx, &NotificationRequest{
		TenantID:         testTenantID(),
		NotificationType: "TEST",
		Status:           RequestStatusProcessed,
	})
	require.NoError(t, err)

	sub := f.subs.SubscribeRequests(ctx, testTenantID())
	defer sub.Close()

	require.NoError(t, f.manager.DeleteRequest(ctx, testTenantID(), saved.ID))

	select {
	case update := <-sub.Receive(ctx):
		assert.Equal(t, saved.ID, update.RequestID)
		assert.True(t, update.Deleted)
	case <-time.After(time.Second):
		t.Fatal("no request update received")
	}

	_, err = f.storage.GetRequest(ctx, testTenantID(), saved.ID)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestManager_UpdateRequest_Broadcasts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	saved, err := f.storage.SaveRequest(ctx, &NotificationRequest{
		TenantID:         testTenantID(),
		NotificationType: "TEST",
		Status:           RequestStatusProcessed,
	})
	require.NoError(t, err)

	sub := f.subs.SubscribeRequests(ctx, testTenantID())
	defer sub.Close()

	saved.Info = map[string]string{"alarmStatus": "CLEARED"}
	updated, err := f.manager.UpdateRequest(ctx, testTenantID(), saved)
	require.NoError(t, err)

	select {
	case update := <-sub.Receive(ctx):
		assert.Equal(t, updated.ID, update.RequestID)
		assert.False(t, update.Deleted)
		assert.Equal(t, "CLEARED", update.Info["alarmStatus"])
	case <-time.After(time.Second):
		t.Fatal("no request update received")
	}
}

func newClusterFixture(t *testing.T, nodeID string, bus *cluster.MemoryBus, discovery cluster.Discovery) *fixture {
	t.Helper()

	f := &fixture{
		storage:   NewMemoryStorage(),
		resolver:  NewStaticRecipientResolver(nil),
		templates: NewStaticTemplateProvider(),
		settings:  NewStaticSettingsProvider(nil),
		subs:      NewLocalSubscriptionManager(100),
	}
	f.settings.SetFallback(EnableAll(DeliveryMethodWebsocket))
	f.templates.SetTemplate("TEST", DeliveryMethodWebsocket, Template{Body: "Hello ${recipientFirstName}"})

	manager, err := NewManager(Dependencies{
		Requests:      f.storage,
		Notifications: f.storage,
		Settings:      f.settings,
		Templates:     f.templates,
		Recipients:    f.resolver,
		Subscriptions: f.subs,
		Producer:      bus,
		Discovery:     discovery,
	}, WithNodeID(nodeID))
	require.NoError(t, err)
	f.manager = manager

	t.Cleanup(func() {
		require.NoError(t, manager.Close())
		require.NoError(t, f.subs.Close())
	})
	return f
}

func TestManager_SchedulerMessageForwardedToPartitionOwner(t *testing.T) {
	t.Parallel()

	bus := cluster.NewMemoryBus(8)
	defer bus.Close()

	// Single remote node so it owns every partition.
	f := newClusterFixture(t, "core-1", bus, cluster.NewStaticDiscovery("core-2"))

	ctx := context.Background()
	remote, err := bus.Messages(ctx, cluster.NotificationsTopic(cluster.ServiceTypeCore, "core-2"))
	require.NoError(t, err)

	request := newRequest([]uuid.UUID{uuid.New()}, DeliveryMethodWebsocket)
	request.Config = &RequestConfig{SendingDelaySec: 10}
	saved, err := f.manager.ProcessRequest(ctx, testTenantID(), request)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusScheduled, saved.Status)

	select {
	case msg := <-remote:
		env, err := DecodeUpdate(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, UpdateKindScheduler, env.Kind)
		require.NotNil(t, env.Scheduler)
		assert.Equal(t, testTenantID(), env.Scheduler.TenantID())
		assert.Equal(t, saved.ID, env.Scheduler.RequestID())
	case <-time.After(time.Second):
		t.Fatal("scheduler message never reached the partition owner")
	}
}

func TestManager_RequestUpdateFansOutToOtherNodes(t *testing.T) {
	t.Parallel()

	bus := cluster.NewMemoryBus(8)
	defer bus.Close()

	f := newClusterFixture(t, "core-1", bus, cluster.NewStaticDiscovery("core-1", "core-2", "core-3"))

	ctx := context.Background()
	self, err := bus.Messages(ctx, cluster.NotificationsTopic(cluster.ServiceTypeCore, "core-1"))
	require.NoError(t, err)
	two, err := bus.Messages(ctx, cluster.NotificationsTopic(cluster.ServiceTypeCore, "core-2"))
	require.NoError(t, err)
	three, err := bus.Messages(ctx, cluster.NotificationsTopic(cluster.ServiceTypeCore, "core-3"))
	require.NoError(t, err)

	saved, err := f.storage.SaveRequest(ctx, &NotificationRequest{
		TenantID:         testTenantID(),
		NotificationType: "TEST",
		Status:           RequestStatusProcessed,
	})
	require.NoError(t, err)
	require.NoError(t, f.manager.DeleteRequest(ctx, testTenantID(), saved.ID))

	for _, remote := range []<-chan cluster.Message{two, three} {
		select {
		case msg := <-remote:
			env, err := DecodeUpdate(msg.Payload)
			require.NoError(t, err)
			assert.Equal(t, UpdateKindRequest, env.Kind)
			require.NotNil(t, env.Request)
			assert.Equal(t, saved.ID, env.Request.RequestID)
			assert.True(t, env.Request.Deleted)
		case <-time.After(time.Second):
			t.Fatal("request update never reached a remote node")
		}
	}

	// The local node already delivered in-process and is skipped.
	select {
	case <-self:
		t.Fatal("request update echoed back to the sending node")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_Run_AppliesRemoteUpdates(t *testing.T) {
	t.Parallel()

	bus := cluster.NewMemoryBus(8)
	defer bus.Close()

	f := newClusterFixture(t, "core-1", bus, cluster.NewStaticDiscovery("core-1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- f.manager.Run(ctx, bus)
	}()

	alice := newRecipient("alice")
	sub := f.subs.SubscribeNotifications(ctx, alice.ID)
	defer sub.Close()

	notification := &Notification{
		ID:          uuid.New(),
		RecipientID: alice.ID,
		Text:        "from another node",
		Status:      NotificationStatusSent,
	}
	env := UpdateEnvelope{
		Kind:         UpdateKindNotification,
		TenantID:     testTenantID(),
		RecipientID:  alice.ID,
		Notification: &NotificationUpdate{Notification: notification, IsNew: true},
	}
	msg, err := cluster.NewMessage(env)
	require.NoError(t, err)
	require.NoError(t, bus.Send(ctx, cluster.NotificationsTopic(cluster.ServiceTypeCore, "core-1"), msg))

	select {
	case update := <-sub.Receive(ctx):
		require.NotNil(t, update.Notification)
		assert.True(t, update.IsNew)
		assert.Equal(t, "from another node", update.Notification.Text)
	case <-time.After(time.Second):
		t.Fatal("remote update was not applied locally")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}
