package notify

import (
	"sync"

	"github.com/google/uuid"
)

type attemptState int8

const (
	attemptPending attemptState = iota
	attemptSent
	attemptFailed
)

type attempt struct {
	state attemptState
	err   string
}

// DeliveryStats accumulates per-request delivery outcomes keyed by delivery
// method and recipient. All methods are safe for concurrent use; the
// reserve/report pair gives at-most-once semantics per (method, recipient).
type DeliveryStats struct {
	mu       sync.Mutex
	attempts map[DeliveryMethod]map[uuid.UUID]*attempt
}

// NewDeliveryStats returns an empty stats accumulator.
func NewDeliveryStats() *DeliveryStats {
	return &DeliveryStats{attempts: make(map[DeliveryMethod]map[uuid.UUID]*attempt)}
}

// Reserve atomically claims the send attempt for the pair. A second claim
// returns ErrAlreadySent and leaves the recorded outcome untouched.
func (s *DeliveryStats) Reserve(method DeliveryMethod, recipientID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRecipient, ok := s.attempts[method]
	if !ok {
		byRecipient = make(map[uuid.UUID]*attempt)
		s.attempts[method] = byRecipient
	}
	if _, ok := byRecipient[recipientID]; ok {
		return ErrAlreadySent
	}
	byRecipient[recipientID] = &attempt{state: attemptPending}
	return nil
}

// ReportSent settles a reserved attempt as successful.
func (s *DeliveryStats) ReportSent(method DeliveryMethod, recipientID uuid.UUID) {
	s.settle(method, recipientID, attemptSent, "")
}

// ReportError settles a reserved attempt as failed with the given cause.
func (s *DeliveryStats) ReportError(method DeliveryMethod, recipientID uuid.UUID, err error) {
	cause := "unknown error"
	if err != nil {
		cause = err.Error()
	}
	s.settle(method, recipientID, attemptFailed, cause)
}

func (s *DeliveryStats) settle(method DeliveryMethod, recipientID uuid.UUID, state attemptState, cause string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRecipient, ok := s.attempts[method]
	if !ok {
		byRecipient = make(map[uuid.UUID]*attempt)
		s.attempts[method] = byRecipient
	}
	a, ok := byRecipient[recipientID]
	if !ok {
		a = &attempt{}
		byRecipient[recipientID] = a
	}
	if ok && a.state != attemptPending {
		// First settlement wins.
		return
	}
	a.state = state
	a.err = cause
}

// Contains reports whether a send attempt exists for the pair.
func (s *DeliveryStats) Contains(method DeliveryMethod, recipientID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRecipient, ok := s.attempts[method]
	if !ok {
		return false
	}
	_, ok = byRecipient[recipientID]
	return ok
}

// Snapshot returns a point-in-time copy of settled outcomes. Reserved but
// unsettled attempts are excluded.
func (s *DeliveryStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := StatsSnapshot{
		Sent:   make(map[DeliveryMethod]int),
		Errors: make(map[DeliveryMethod]map[string]string),
	}
	for method, byRecipient := range s.attempts {
		for recipientID, a := range byRecipient {
			switch a.state {
			case attemptSent:
				snapshot.Sent[method]++
			case attemptFailed:
				if snapshot.Errors[method] == nil {
					snapshot.Errors[method] = make(map[string]string)
				}
				snapshot.Errors[method][recipientID.String()] = a.err
			}
		}
	}
	return snapshot
}

// StatsSnapshot is the serializable form of DeliveryStats persisted alongside
// a notification request.
type StatsSnapshot struct {
	Sent   map[DeliveryMethod]int               `json:"sent"`
	Errors map[DeliveryMethod]map[string]string `json:"errors"`
}

// TotalSent sums successful deliveries across all methods.
func (s StatsSnapshot) TotalSent() int {
	total := 0
	for _, n := range s.Sent {
		total += n
	}
	return total
}

// TotalErrors sums failed deliveries across all methods.
func (s StatsSnapshot) TotalErrors() int {
	total := 0
	for _, errs := range s.Errors {
		total += len(errs)
	}
	return total
}
