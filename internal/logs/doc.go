// Package logs tails scribe log files for the CLI.
//
// Last reads the final N lines with bounded memory, ReadFrom resumes at a byte
// offset, and Follow streams appended lines until the context ends. Follow
// reopens from the start when the file is truncated or replaced, which happens
// when scribed restarts and repoints scribed.log.
package logs
