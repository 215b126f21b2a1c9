// Package transcriber is the public face of the transcription core.
//
// Service wires intake validation, option building, device resolution, the
// model cache, the recognition invoker, result enrichment and export into the
// handful of calls the CLI, the daemon and the inbox watcher use. Run adds
// job bookkeeping on top: a history row per job, output files, and removal
// of staged sources.
package transcriber
