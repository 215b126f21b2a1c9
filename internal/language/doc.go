// Package language provides language code normalization and the catalogue of
// languages offered for transcription.
//
// Conversions between ISO 639-1, ISO 639-2, display names, and word forms
// live here so the option builder, CLI, and HTTP API agree on one list.
package language
