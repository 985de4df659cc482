package scheduler

import "errors"

var (
	// ErrMissingDependency is returned by NewService when a required
	// collaborator is nil.
	ErrMissingDependency = errors.New("scheduler: missing required dependency")

	// ErrStopped is returned when a message arrives after Stop.
	ErrStopped = errors.New("scheduler: service is stopped")
)
