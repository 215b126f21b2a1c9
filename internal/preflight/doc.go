// Package preflight provides readiness checks for the binaries, directories
// and daemon that scribe depends on.
//
// The daemon runs RunAll at startup and logs every failure; the CLI "scribe
// status" command prints the same results next to the dependency table.
package preflight
