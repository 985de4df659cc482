// Package logger provides a small factory around log/slog plus attribute
// constructors shared across the codebase.
//
// New builds a *slog.Logger from functional options (format, level, output,
// static attributes). The attribute helpers (Error, TenantID, RequestID,
// RecipientID, ...) standardise the keys used in structured log records so
// that the same entity is always queryable under the same field name.
package logger
