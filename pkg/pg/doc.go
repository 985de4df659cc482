// Package pg provides PostgreSQL connection pooling and schema migration
// helpers built on pgx and goose.
//
// Connect establishes a pgxpool.Pool from environment-driven configuration
// with retry logic suited to containerised deployments where the database may
// come up after the application. Migrate applies goose SQL migrations from a
// configurable directory, routing migration output through the application's
// structured logger.
package pg
