// Package scheduler defers notification requests that carry a sending delay.
// A request stored as SCHEDULED produces a scheduler message routed to the
// cluster node owning the tenant's partition; the service on that node arms
// a timer and re-submits the request to the dispatcher once the delay,
// counted from the original submission time, has elapsed. Requests deleted
// or processed in the meantime are silently dropped.
package scheduler
