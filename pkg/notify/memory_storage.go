package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory RequestStorage and NotificationStorage.
// Suitable for tests and single-process deployments; everything is lost on
// restart.
type MemoryStorage struct {
	mu            sync.RWMutex
	requests      map[uuid.UUID]*NotificationRequest
	notifications map[uuid.UUID]*Notification
	stats         map[uuid.UUID]StatsSnapshot
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		requests:      make(map[uuid.UUID]*NotificationRequest),
		notifications: make(map[uuid.UUID]*Notification),
		stats:         make(map[uuid.UUID]StatsSnapshot),
	}
}

func (s *MemoryStorage) SaveRequest(_ context.Context, request *NotificationRequest) (*NotificationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *request
	if saved.ID == uuid.Nil {
		saved.ID = uuid.New()
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now()
	}
	s.requests[saved.ID] = &saved

	result := saved
	return &result, nil
}

func (s *MemoryStorage) GetRequest(_ context.Context, tenantID, requestID uuid.UUID) (*NotificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.requests[requestID]
	if !ok || request.TenantID != tenantID {
		return nil, ErrRequestNotFound
	}
	result := *request
	return &result, nil
}

func (s *MemoryStorage) DeleteRequest(_ context.Context, tenantID, requestID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[requestID]
	if !ok || request.TenantID != tenantID {
		return ErrRequestNotFound
	}
	delete(s.requests, requestID)
	delete(s.stats, requestID)
	return nil
}

func (s *MemoryStorage) UpdateRequestStats(_ context.Context, tenantID, requestID uuid.UUID, stats StatsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[requestID]
	if !ok || request.TenantID != tenantID {
		return ErrRequestNotFound
	}
	s.stats[requestID] = stats
	return nil
}

// RequestStats returns the last stats snapshot persisted for a request.
func (s *MemoryStorage) RequestStats(requestID uuid.UUID) (StatsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.stats[requestID]
	return stats, ok
}

func (s *MemoryStorage) SaveNotification(_ context.Context, _ uuid.UUID, notification Notification) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	stored := notification
	s.notifications[stored.ID] = &stored

	result := stored
	return &result, nil
}

func (s *MemoryStorage) GetNotification(_ context.Context, _ uuid.UUID, notificationID uuid.UUID) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notification, ok := s.notifications[notificationID]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	result := *notification
	return &result, nil
}

func (s *MemoryStorage) MarkNotificationRead(_ context.Context, _ uuid.UUID, recipientID, notificationID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification, ok := s.notifications[notificationID]
	if !ok || notification.RecipientID != recipientID {
		return false, ErrNotificationNotFound
	}
	if notification.Status == NotificationStatusRead {
		return false, nil
	}
	notification.Status = NotificationStatusRead
	return true, nil
}

// NotificationsForRecipient lists stored notifications for a recipient,
// newest last. Intended for tests and diagnostics.
func (s *MemoryStorage) NotificationsForRecipient(recipientID uuid.UUID) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			result = append(result, *n)
		}
	}
	return result
}

// StaticRecipientResolver resolves recipients from a fixed target-to-users
// mapping, honoring pagination and optional customer scoping.
type StaticRecipientResolver struct {
	mu      sync.RWMutex
	targets map[uuid.UUID][]Recipient
}

// NewStaticRecipientResolver builds a resolver over the given mapping.
func NewStaticRecipientResolver(targets map[uuid.UUID][]Recipient) *StaticRecipientResolver {
	if targets == nil {
		targets = make(map[uuid.UUID][]Recipient)
	}
	return &StaticRecipientResolver{targets: targets}
}

// SetTarget replaces the recipients of one target.
func (r *StaticRecipientResolver) SetTarget(targetID uuid.UUID, recipients []Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[targetID] = recipients
}

func (r *StaticRecipientResolver) FindRecipients(_ context.Context, tenantID, customerID, targetID uuid.UUID, link PageLink) (RecipientPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Recipient
	for _, recipient := range r.targets[targetID] {
		if recipient.TenantID != uuid.Nil && recipient.TenantID != tenantID {
			continue
		}
		if customerID != uuid.Nil && recipient.CustomerID != customerID {
			continue
		}
		matched = append(matched, recipient)
	}

	if link.PageSize <= 0 {
		link.PageSize = DefaultRecipientBatchSize
	}
	start := link.Page * link.PageSize
	if start >= len(matched) {
		return RecipientPage{}, nil
	}
	end := min(start+link.PageSize, len(matched))
	return RecipientPage{
		Recipients: matched[start:end],
		HasNext:    end < len(matched),
	}, nil
}

// StaticTemplateProvider serves templates from a fixed in-memory table keyed
// by notification type and delivery method.
type StaticTemplateProvider struct {
	mu        sync.RWMutex
	templates map[templateKey]*Template
}

type templateKey struct {
	notificationType string
	method           DeliveryMethod
}

// NewStaticTemplateProvider returns an empty provider.
func NewStaticTemplateProvider() *StaticTemplateProvider {
	return &StaticTemplateProvider{templates: make(map[templateKey]*Template)}
}

// SetTemplate registers a template for the type and method.
func (p *StaticTemplateProvider) SetTemplate(notificationType string, method DeliveryMethod, tmpl Template) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.templates[templateKey{notificationType, method}] = &tmpl
}

func (p *StaticTemplateProvider) Template(_ context.Context, _ uuid.UUID, notificationType string, method DeliveryMethod) (*Template, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tmpl, ok := p.templates[templateKey{notificationType, method}]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	result := *tmpl
	return &result, nil
}
