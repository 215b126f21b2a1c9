// Package daemon hosts scribed: a single-instance background service that
// accepts uploads over HTTP, runs them through a bounded worker pool, streams
// job status over websockets, transcribes files dropped into the inbox, and
// periodically removes stale staging files.
//
// The history store is the system of record. Jobs are written as pending
// before they are queued, so a crash leaves a trail that ResetInterrupted
// closes out on the next start.
package daemon
