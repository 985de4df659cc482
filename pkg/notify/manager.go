package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hl1221hl/thingsboard/pkg/async"
	"github.com/hl1221hl/thingsboard/pkg/cluster"
	"github.com/hl1221hl/thingsboard/pkg/logger"
)

// SchedulerHandler processes scheduler messages consumed from this node's
// notifications topic.
type SchedulerHandler interface {
	HandleSchedulerMsg(ctx context.Context, msg cluster.SchedulerMsg) error
}

// Dependencies are the collaborators a Manager coordinates. Requests,
// Notifications, Settings, Templates and Recipients are required. Producer
// and Discovery are optional: without them the manager runs single-node and
// skips cross-node forwarding. Subscriptions is optional too; without it
// live updates are dropped.
type Dependencies struct {
	Requests      RequestStorage
	Notifications NotificationStorage
	Settings      SettingsProvider
	Templates     TemplateProvider
	Recipients    RecipientResolver
	Subscriptions SubscriptionManager
	Producer      cluster.Producer
	Discovery     cluster.Discovery

	// Channels serve the request's delivery methods. The manager registers
	// itself as the websocket channel in addition to these.
	Channels []Channel
}

// Manager orchestrates notification dispatch: it validates requests against
// tenant settings, decides between immediate and deferred processing,
// resolves recipients in bounded batches and fans sends out across delivery
// channels, accumulating per-request delivery stats. The manager itself is
// the channel for the websocket method.
type Manager struct {
	requests      RequestStorage
	notifications NotificationStorage
	settings      SettingsProvider
	templates     TemplateProvider
	recipients    RecipientResolver
	subscriptions SubscriptionManager
	producer      cluster.Producer
	discovery     cluster.Discovery
	registry      *ChannelRegistry
	scheduler     SchedulerHandler

	nodeID    string
	batchSize int
	clock     func() time.Time
	log       *slog.Logger
	wg        sync.WaitGroup
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger. Discards by default.
func WithManagerLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithNodeID identifies this node in cluster traffic. Required for
// cross-node forwarding to tell local delivery from remote.
func WithNodeID(nodeID string) ManagerOption {
	return func(m *Manager) {
		m.nodeID = nodeID
	}
}

// WithBatchSize overrides the recipient batch size.
func WithBatchSize(size int) ManagerOption {
	return func(m *Manager) {
		if size > 0 {
			m.batchSize = size
		}
	}
}

// WithSchedulerHandler wires the handler invoked for scheduler messages
// consumed by Run.
func WithSchedulerHandler(h SchedulerHandler) ManagerOption {
	return func(m *Manager) {
		m.scheduler = h
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager validates deps and builds a Manager.
func NewManager(deps Dependencies, opts ...ManagerOption) (*Manager, error) {
	switch {
	case deps.Requests == nil:
		return nil, fmt.Errorf("%w: request storage", ErrMissingDependency)
	case deps.Notifications == nil:
		return nil, fmt.Errorf("%w: notification storage", ErrMissingDependency)
	case deps.Settings == nil:
		return nil, fmt.Errorf("%w: settings provider", ErrMissingDependency)
	case deps.Templates == nil:
		return nil, fmt.Errorf("%w: template provider", ErrMissingDependency)
	case deps.Recipients == nil:
		return nil, fmt.Errorf("%w: recipient resolver", ErrMissingDependency)
	}

	m := &Manager{
		requests:      deps.Requests,
		notifications: deps.Notifications,
		settings:      deps.Settings,
		templates:     deps.Templates,
		recipients:    deps.Recipients,
		subscriptions: deps.Subscriptions,
		producer:      deps.Producer,
		discovery:     deps.Discovery,
		batchSize:     DefaultRecipientBatchSize,
		clock:         time.Now,
		log:           slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}

	// The manager serves the websocket method itself, so it always joins
	// the registry. Explicit channels for the same method take precedence.
	m.registry = NewChannelRegistry(append([]Channel{m}, deps.Channels...)...)
	return m, nil
}

// ProcessRequest validates, persists and dispatches a notification request.
//
// Requests whose delivery methods are not all enabled in the tenant settings
// are rejected before anything is persisted. A first-time request carrying a
// positive sending delay is stored as SCHEDULED and handed to the scheduler
// instead of being dispatched. Everything else is stored as PROCESSED and
// dispatched immediately: recipients are resolved per target in bounded
// batches and each (delivery method, recipient) send runs asynchronously.
// The returned request reflects the persisted state; dispatch outcomes
// arrive later through the request's stored delivery stats.
func (m *Manager) ProcessRequest(ctx context.Context, tenantID uuid.UUID, request *NotificationRequest) (*NotificationRequest, error) {
	m.log.LogAttrs(ctx, slog.LevelDebug, "Processing notification request",
		logger.TenantID(tenantID), slog.Int("targets", len(request.Targets)))

	settings, err := m.settings.NotificationSettings(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}
	for _, method := range request.DeliveryMethods {
		cfg, ok := settings.DeliveryMethods[method]
		if !ok || !cfg.Enabled {
			return nil, fmt.Errorf("%w: %s", ErrDeliveryMethodNotEnabled, method)
		}
	}

	request.TenantID = tenantID
	if request.CreatedAt.IsZero() {
		request.CreatedAt = m.clock()
	}

	if cfg := request.Config; cfg != nil && cfg.SendingDelaySec > 0 && request.ID == uuid.Nil {
		request.Status = RequestStatusScheduled
		saved, err := m.requests.SaveRequest(ctx, request)
		if err != nil {
			return nil, fmt.Errorf("failed to save scheduled notification request: %w", err)
		}
		m.forwardToScheduler(ctx, tenantID, saved.ID)
		return saved, nil
	}

	request.Status = RequestStatusProcessed
	saved, err := m.requests.SaveRequest(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to save notification request: %w", err)
	}

	pctx := NewProcessingContext(tenantID, saved, settings, m.templates)
	for _, targetID := range saved.Targets {
		err := forEachRecipientBatch(ctx, func(ctx context.Context, link PageLink) (RecipientPage, error) {
			return m.recipients.FindRecipients(ctx, tenantID, saved.CustomerID, targetID, link)
		}, m.batchSize, func(batch []Recipient) error {
			m.dispatchBatch(ctx, pctx, batch)
			return nil
		})
		if err != nil {
			// One unresolvable target must not sink the others.
			m.log.LogAttrs(ctx, slog.LevelError, "Failed to resolve recipients for notification target",
				logger.TenantID(tenantID), logger.RequestID(saved.ID),
				slog.String("target_id", targetID.String()), logger.Error(err))
		}
	}
	return saved, nil
}

// dispatchBatch starts one asynchronous send per (delivery method, recipient)
// pair and, once every send in the batch has settled, persists a delivery
// stats snapshot for the request.
func (m *Manager) dispatchBatch(ctx context.Context, pctx *ProcessingContext, batch []Recipient) {
	stats := pctx.Stats()
	futures := make([]*async.Future[struct{}], 0, len(batch)*len(pctx.Request.DeliveryMethods))

	for _, method := range pctx.Request.DeliveryMethods {
		channel, ok := m.registry.Channel(method)
		if !ok {
			// Enabled in settings but nothing serves it. Recorded per
			// recipient so the gap shows up in the request stats.
			for _, recipient := range batch {
				if err := stats.Reserve(method, recipient.ID); err == nil {
					stats.ReportError(method, recipient.ID, fmt.Errorf("%w: %s", ErrChannelNotRegistered, method))
				}
			}
			continue
		}

		m.log.LogAttrs(ctx, slog.LevelDebug, "Sending notifications to recipients batch",
			logger.RequestID(pctx.Request.ID), logger.DeliveryMethod(string(method)),
			slog.Int("batch_size", len(batch)))

		for _, recipient := range batch {
			futures = append(futures, m.sendToRecipient(ctx, pctx, channel, recipient))
		}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		async.Settle(futures...)

		statsCtx := context.WithoutCancel(ctx)
		if err := m.requests.UpdateRequestStats(statsCtx, pctx.TenantID, pctx.Request.ID, stats.Snapshot()); err != nil {
			m.log.LogAttrs(statsCtx, slog.LevelError, "Failed to update stats for notification request",
				logger.TenantID(pctx.TenantID), logger.RequestID(pctx.Request.ID), logger.Error(err))
		}
	}()
}

// sendToRecipient reserves the send attempt synchronously, then renders and
// delivers asynchronously. A pair that was already attempted fails fast with
// ErrAlreadySent and never reaches the channel.
func (m *Manager) sendToRecipient(ctx context.Context, pctx *ProcessingContext, channel Channel, recipient Recipient) *async.Future[struct{}] {
	method := channel.DeliveryMethod()
	if err := pctx.Stats().Reserve(method, recipient.ID); err != nil {
		return async.Rejected[struct{}](err)
	}

	return async.Async(ctx, recipient, func(ctx context.Context, recipient Recipient) (struct{}, error) {
		tmpl, err := pctx.Template(ctx, method)
		if err != nil {
			pctx.Stats().ReportError(method, recipient.ID, err)
			return struct{}{}, err
		}
		text := RenderTemplate(tmpl.Body, pctx.TemplateContext(recipient))

		if err := channel.Send(ctx, recipient, text, pctx); err != nil {
			m.log.LogAttrs(ctx, slog.LevelDebug, "Failed to send notification to recipient",
				logger.RequestID(pctx.Request.ID), logger.RecipientID(recipient.ID),
				logger.DeliveryMethod(string(method)), logger.Error(err))
			pctx.Stats().ReportError(method, recipient.ID, err)
			return struct{}{}, err
		}
		pctx.Stats().ReportSent(method, recipient.ID)
		return struct{}{}, nil
	})
}

// DeliveryMethod makes the manager the channel for websocket delivery.
func (m *Manager) DeliveryMethod() DeliveryMethod {
	return DeliveryMethodWebsocket
}

// Send persists a SENT notification for the recipient and pushes a "new
// notification" update to their live subscribers, locally and across nodes.
func (m *Manager) Send(ctx context.Context, recipient Recipient, text string, pctx *ProcessingContext) error {
	request := pctx.Request
	notification := Notification{
		ID:             uuid.New(),
		RequestID:      request.ID,
		RecipientID:    recipient.ID,
		Type:           request.NotificationType,
		Text:           text,
		Info:           request.Info,
		OriginatorType: request.OriginatorType,
		Status:         NotificationStatusSent,
		CreatedAt:      m.clock(),
	}

	saved, err := m.notifications.SaveNotification(ctx, pctx.TenantID, notification)
	if err != nil {
		m.log.LogAttrs(ctx, slog.LevelError, "Failed to create notification for recipient",
			logger.TenantID(pctx.TenantID), logger.RequestID(request.ID),
			logger.RecipientID(recipient.ID), logger.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	m.onNotificationUpdate(ctx, pctx.TenantID, recipient.ID, saved, true)
	return nil
}

// MarkNotificationRead transitions a notification to READ and, when a
// transition actually happened, pushes a counter-refresh update to the
// recipient's subscribers. Re-reading an already-read notification is a
// no-op.
func (m *Manager) MarkNotificationRead(ctx context.Context, tenantID, recipientID, notificationID uuid.UUID) error {
	updated, err := m.notifications.MarkNotificationRead(ctx, tenantID, recipientID, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if !updated {
		return nil
	}

	notification, err := m.notifications.GetNotification(ctx, tenantID, notificationID)
	if err != nil {
		return fmt.Errorf("failed to load notification after read transition: %w", err)
	}
	m.onNotificationUpdate(ctx, tenantID, recipientID, notification, false)
	return nil
}

// UpdateRequest persists changes to a request and broadcasts a request
// update so sessions holding its notifications can refresh them.
func (m *Manager) UpdateRequest(ctx context.Context, tenantID uuid.UUID, request *NotificationRequest) (*NotificationRequest, error) {
	request.TenantID = tenantID
	saved, err := m.requests.SaveRequest(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to update notification request: %w", err)
	}
	m.onRequestUpdate(ctx, tenantID, RequestUpdate{RequestID: saved.ID, Info: saved.Info})
	return saved, nil
}

// DeleteRequest removes a request and broadcasts a deletion update so
// sessions drop notifications originating from it.
func (m *Manager) DeleteRequest(ctx context.Context, tenantID, requestID uuid.UUID) error {
	if err := m.requests.DeleteRequest(ctx, tenantID, requestID); err != nil {
		return fmt.Errorf("failed to delete notification request: %w", err)
	}
	m.onRequestUpdate(ctx, tenantID, RequestUpdate{RequestID: requestID, Deleted: true})
	return nil
}

// Run consumes this node's notifications topic and applies incoming updates:
// notification and request updates go to the local subscription manager,
// scheduler messages to the scheduler handler. Returns when the consumer
// channel closes or ctx is canceled.
func (m *Manager) Run(ctx context.Context, consumer cluster.Consumer) error {
	tpi := cluster.NotificationsTopic(cluster.ServiceTypeCore, m.nodeID)
	msgs, err := consumer.Messages(ctx, tpi)
	if err != nil {
		return fmt.Errorf("failed to subscribe to notifications topic: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			env, err := DecodeUpdate(msg.Payload)
			if err != nil {
				m.log.LogAttrs(ctx, slog.LevelWarn, "Dropping malformed message from notifications topic",
					logger.Topic(tpi.Topic), logger.Error(err))
				continue
			}
			m.applyUpdate(ctx, env)
		}
	}
}

// Close waits for in-flight asynchronous work (stats persistence, cross-node
// forwarding) to finish.
func (m *Manager) Close() error {
	m.wg.Wait()
	return nil
}

func (m *Manager) applyUpdate(ctx context.Context, env *UpdateEnvelope) {
	switch env.Kind {
	case UpdateKindNotification:
		if env.Notification != nil && m.subscriptions != nil {
			m.subscriptions.OnNotificationUpdate(ctx, env.TenantID, env.RecipientID, *env.Notification)
		}
	case UpdateKindRequest:
		if env.Request != nil && m.subscriptions != nil {
			m.subscriptions.OnRequestUpdate(ctx, env.TenantID, *env.Request)
		}
	case UpdateKindScheduler:
		if env.Scheduler == nil || m.scheduler == nil {
			return
		}
		if err := m.scheduler.HandleSchedulerMsg(ctx, *env.Scheduler); err != nil {
			m.log.LogAttrs(ctx, slog.LevelError, "Failed to handle scheduler message",
				logger.TenantID(env.TenantID), logger.Error(err))
		}
	default:
		m.log.LogAttrs(ctx, slog.LevelWarn, "Dropping update of unknown kind",
			slog.String("kind", string(env.Kind)))
	}
}

// onNotificationUpdate delivers a notification update to local subscribers
// and, when the recipient's tenant partition lives on another node, forwards
// it there asynchronously.
func (m *Manager) onNotificationUpdate(ctx context.Context, tenantID, recipientID uuid.UUID, notification *Notification, isNew bool) {
	update := NotificationUpdate{Notification: notification, IsNew: isNew}
	if m.subscriptions != nil {
		m.subscriptions.OnNotificationUpdate(ctx, tenantID, recipientID, update)
	}
	if m.producer == nil || m.discovery == nil {
		return
	}

	env := UpdateEnvelope{
		Kind:         UpdateKindNotification,
		TenantID:     tenantID,
		RecipientID:  recipientID,
		Notification: &update,
	}
	m.submitAsync(ctx, func(ctx context.Context) {
		owner, err := m.discovery.CorePartitionOwner(ctx, tenantID)
		if err != nil {
			m.log.LogAttrs(ctx, slog.LevelWarn, "Failed to resolve partition owner for notification update",
				logger.TenantID(tenantID), logger.Error(err))
			return
		}
		if owner == m.nodeID {
			// Local subscribers already have it.
			return
		}
		m.sendEnvelope(ctx, owner, env)
	})
}

// onRequestUpdate delivers a request update to local subscribers and fans it
// out to every other core node; sessions for the tenant may live anywhere.
// A node that cannot be reached does not stop delivery to the rest.
func (m *Manager) onRequestUpdate(ctx context.Context, tenantID uuid.UUID, update RequestUpdate) {
	if m.subscriptions != nil {
		m.subscriptions.OnRequestUpdate(ctx, tenantID, update)
	}
	if m.producer == nil || m.discovery == nil {
		return
	}

	env := UpdateEnvelope{Kind: UpdateKindRequest, TenantID: tenantID, Request: &update}
	m.submitAsync(ctx, func(ctx context.Context) {
		nodeIDs, err := m.discovery.CoreNodeIDs(ctx)
		if err != nil {
			m.log.LogAttrs(ctx, slog.LevelWarn, "Failed to list core nodes for request update",
				logger.TenantID(tenantID), logger.RequestID(update.RequestID), logger.Error(err))
			return
		}
		for _, nodeID := range nodeIDs {
			if nodeID == m.nodeID {
				continue
			}
			m.sendEnvelope(ctx, nodeID, env)
		}
	})
}

// forwardToScheduler fires a scheduler message at the tenant's partition
// owner. Fire and forget: a lost message surfaces later as a request stuck
// in SCHEDULED, never as a processing error.
func (m *Manager) forwardToScheduler(ctx context.Context, tenantID, requestID uuid.UUID) {
	msg := cluster.NewSchedulerMsg(tenantID, requestID, m.clock())
	if m.producer == nil || m.discovery == nil {
		if m.scheduler != nil {
			if err := m.scheduler.HandleSchedulerMsg(ctx, msg); err != nil {
				m.log.LogAttrs(ctx, slog.LevelError, "Failed to hand request to scheduler",
					logger.TenantID(tenantID), logger.RequestID(requestID), logger.Error(err))
			}
		}
		return
	}

	env := UpdateEnvelope{Kind: UpdateKindScheduler, TenantID: tenantID, Scheduler: &msg}
	m.submitAsync(ctx, func(ctx context.Context) {
		owner, err := m.discovery.CorePartitionOwner(ctx, tenantID)
		if err != nil {
			m.log.LogAttrs(ctx, slog.LevelWarn, "Failed to resolve partition owner for scheduler message",
				logger.TenantID(tenantID), logger.RequestID(requestID), logger.Error(err))
			return
		}
		m.sendEnvelope(ctx, owner, env)
	})
}

func (m *Manager) sendEnvelope(ctx context.Context, nodeID string, env UpdateEnvelope) {
	msg, err := cluster.NewMessage(env)
	if err != nil {
		m.log.LogAttrs(ctx, slog.LevelError, "Failed to encode update envelope",
			logger.TenantID(env.TenantID), logger.Error(err))
		return
	}
	tpi := cluster.NotificationsTopic(cluster.ServiceTypeCore, nodeID)
	if err := m.producer.Send(ctx, tpi, msg); err != nil {
		m.log.LogAttrs(ctx, slog.LevelWarn, "Failed to forward update to node",
			logger.NodeID(nodeID), logger.Topic(tpi.Topic), logger.Error(err))
	}
}

// submitAsync runs fn detached from the caller's cancellation so broadcasts
// survive the originating call returning.
func (m *Manager) submitAsync(ctx context.Context, fn func(context.Context)) {
	detached := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(detached)
	}()
}
