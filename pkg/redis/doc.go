// Package redis provides Redis connection management with environment-driven
// configuration and startup retry logic.
//
// The cluster messaging layer uses the returned client for cross-node
// publishing and node discovery; see the cluster package.
package redis
