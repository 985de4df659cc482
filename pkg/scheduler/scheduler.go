package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hl1221hl/thingsboard/pkg/cluster"
	"github.com/hl1221hl/thingsboard/pkg/logger"
	"github.com/hl1221hl/thingsboard/pkg/notify"
)

// Dispatcher processes a notification request when its delay elapses.
// Satisfied by notify.Manager.
type Dispatcher interface {
	ProcessRequest(ctx context.Context, tenantID uuid.UUID, request *notify.NotificationRequest) (*notify.NotificationRequest, error)
}

// Service re-submits scheduled notification requests once their sending
// delay has elapsed. It consumes scheduler messages produced at submission
// time: the delay counts from the original submission timestamp carried in
// the message, not from when the message arrives.
type Service struct {
	dispatcher Dispatcher
	requests   notify.RequestStorage

	clock func() time.Time
	log   *slog.Logger

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger. Discards by default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService builds a scheduler over the given dispatcher and storage.
func NewService(dispatcher Dispatcher, requests notify.RequestStorage, opts ...Option) (*Service, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("%w: dispatcher", ErrMissingDependency)
	}
	if requests == nil {
		return nil, fmt.Errorf("%w: request storage", ErrMissingDependency)
	}

	s := &Service{
		dispatcher: dispatcher,
		requests:   requests,
		clock:      time.Now,
		log:        slog.New(slog.DiscardHandler),
		timers:     make(map[uuid.UUID]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// HandleSchedulerMsg arms a timer for the scheduled request named by msg.
// Requests that are no longer SCHEDULED are ignored, as are duplicates for a
// request already armed.
func (s *Service) HandleSchedulerMsg(ctx context.Context, msg cluster.SchedulerMsg) error {
	tenantID := msg.TenantID()
	requestID := msg.RequestID()

	request, err := s.requests.GetRequest(ctx, tenantID, requestID)
	if err != nil {
		return fmt.Errorf("failed to load scheduled request: %w", err)
	}
	if request.Status != notify.RequestStatusScheduled {
		return nil
	}

	var delay time.Duration
	if request.Config != nil {
		delay = time.Duration(request.Config.SendingDelaySec) * time.Second
	}
	wait := max(msg.Timestamp().Add(delay).Sub(s.clock()), 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStopped
	}
	if _, ok := s.timers[requestID]; ok {
		return nil
	}

	s.log.LogAttrs(ctx, slog.LevelDebug, "Arming timer for scheduled notification request",
		logger.TenantID(tenantID), logger.RequestID(requestID), slog.Duration("wait", wait))

	s.timers[requestID] = time.AfterFunc(wait, func() {
		s.fire(tenantID, requestID)
	})
	return nil
}

// Cancel disarms the timer for a request, if one is armed. Used when a
// scheduled request is deleted before firing.
func (s *Service) Cancel(requestID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[requestID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, requestID)
	return true
}

// Stop disarms all timers and waits for in-flight dispatches to finish.
// The service accepts no new messages afterwards.
func (s *Service) Stop() {
	s.mu.Lock()
	s.closed = true
	for requestID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, requestID)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Service) fire(tenantID, requestID uuid.UUID) {
	s.mu.Lock()
	delete(s.timers, requestID)
	if s.closed {
		s.mu.Unlock()
		return
	}
	// Registering in-flight work under the lock orders it before Stop's wait.
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx := context.Background()
	request, err := s.requests.GetRequest(ctx, tenantID, requestID)
	if err != nil {
		// Deleted while waiting; nothing to do.
		s.log.LogAttrs(ctx, slog.LevelDebug, "Scheduled notification request is gone",
			logger.TenantID(tenantID), logger.RequestID(requestID), logger.Error(err))
		return
	}
	if request.Status != notify.RequestStatusScheduled {
		return
	}

	s.log.LogAttrs(ctx, slog.LevelDebug, "Dispatching scheduled notification request",
		logger.TenantID(tenantID), logger.RequestID(requestID))

	if _, err := s.dispatcher.ProcessRequest(ctx, tenantID, request); err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "Failed to dispatch scheduled notification request",
			logger.TenantID(tenantID), logger.RequestID(requestID), logger.Error(err))
	}
}
