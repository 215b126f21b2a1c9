// Command scribe is the command-line front end for local transcription.
//
// It transcribes files directly through the same service the daemon uses,
// browses the job history, inspects models, presets, languages and the
// compute device, and reports environment health.
package main
