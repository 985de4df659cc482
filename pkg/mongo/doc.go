// Package mongo provides MongoDB connection management with environment-based
// configuration, retry logic, and connection pooling defaults.
//
// The notification storage layer offers a MongoDB-backed implementation built
// on the client returned by this package; see the notify package.
package mongo
