// Package whispercli implements engine.Engine on top of the openai-whisper
// command line tool.
//
// Each Run launches one whisper process that writes a JSON transcript into a
// scratch directory; the JSON is decoded into an engine.RawTranscript and the
// scratch directory is removed. Tests inject a command runner instead of
// executing the real binary.
package whispercli
