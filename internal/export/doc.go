// Package export renders enriched transcripts as plain text, SRT, WebVTT,
// and JSON, and writes them to disk atomically.
package export
