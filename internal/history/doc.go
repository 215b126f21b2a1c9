// Package history persists transcription jobs in SQLite.
//
// Every job the CLI or daemon runs gets a row: created as pending, moved to
// running when a worker picks it up, and finished as completed (with the
// enriched result stored as JSON) or failed (with the error text and kind).
// The daemon reads results back from here to serve exports, so the store is
// the single source of truth for job state.
package history
