package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct{ label, ansi string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const (
	ansiReset        = "\x1b[0m"
	statusLabelWidth = 20
)

// statusReport accumulates sectioned check lines for the status command.
type statusReport struct {
	color bool
	lines []string
}

func newStatusReport(out io.Writer) *statusReport {
	return &statusReport{color: shouldColorize(out)}
}

func (r *statusReport) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	header := "== " + strings.TrimSpace(title) + " =="
	r.lines = append(r.lines,
		r.paint(statusInfo, header),
		r.paint(statusInfo, strings.Repeat("-", len(header))),
	)
}

func (r *statusReport) line(label string, kind statusKind, message string) {
	text := "[" + statusStyles[kind].label + "]"
	if message != "" {
		text += " " + message
	}
	r.lines = append(r.lines, r.paint(kind, fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", text)))
}

func (r *statusReport) paint(kind statusKind, s string) string {
	if !r.color {
		return s
	}
	return statusStyles[kind].ansi + s + ansiReset
}

func (r *statusReport) writeTo(out io.Writer) error {
	_, err := io.WriteString(out, strings.Join(r.lines, "\n")+"\n")
	return err
}

// passFail maps a check outcome to a status kind; optional failures warn.
func passFail(passed, optional bool) statusKind {
	switch {
	case passed:
		return statusOK
	case optional:
		return statusWarn
	default:
		return statusError
	}
}

func shouldColorize(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
