// Package cache provides a generic, thread-safe LRU cache with an optional
// eviction callback for resource cleanup.
//
// The cache is intended for bounding in-process state that grows with the
// number of active entities, such as per-user broadcasters or per-tenant
// configuration, where the least recently touched entries can be safely
// discarded and rebuilt on demand.
package cache
