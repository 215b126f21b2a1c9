// Package deps reports whether the external binaries scribe shells out to
// are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names one external binary. Optional tools only degrade
// features when missing; required ones block transcription.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the resolved availability of a Requirement. Command holds the
// absolute path once the binary is found.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// LookPath resolves commands; tests replace it.
var LookPath = exec.LookPath

func (r Requirement) check() Status {
	st := Status{
		Name:        r.Name,
		Command:     strings.TrimSpace(r.Command),
		Description: strings.TrimSpace(r.Description),
		Optional:    r.Optional,
	}
	if st.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	resolved, err := LookPath(st.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found", st.Command)
		return st
	}
	st.Command, st.Available = resolved, true
	return st
}

// CheckBinaries resolves every requirement, preserving order.
func CheckBinaries(requirements []Requirement) []Status {
	out := make([]Status, len(requirements))
	for i, req := range requirements {
		out[i] = req.check()
	}
	return out
}

// MissingRequired filters statuses down to unavailable, non-optional tools.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, st := range statuses {
		if !st.Optional && !st.Available {
			missing = append(missing, st)
		}
	}
	return missing
}
