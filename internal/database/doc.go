// Package database keeps a SQLite history of mirror runs.
//
// Each run stores its summary, the per-resource outcomes and the full report
// as JSON, so past runs can be listed and shown again. The history is a log
// only; it is never consulted to skip or resume downloads.
//
// The driver is modernc.org/sqlite, a CGO-free implementation, and the
// database is opened in WAL mode with a single connection.
package database
