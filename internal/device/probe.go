package device

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// NvidiaSMICommand is the executable queried for accelerator details.
const NvidiaSMICommand = "nvidia-smi"

// ErrNoAccelerator reports that the host exposes no usable accelerator.
var ErrNoAccelerator = errors.New("no accelerator detected")

// Accelerator describes the first accelerator reported by the host.
type Accelerator struct {
	Name     string
	MemoryGB float64
}

// Prober queries host hardware.
type Prober interface {
	ProbeAccelerator(ctx context.Context) (Accelerator, error)
	SystemMemoryGB() (float64, error)
}

// CommandRunner executes a command and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// HostProber probes the local machine.
type HostProber struct {
	Binary string
	run    CommandRunner
}

// NewHostProber returns a prober that shells out to nvidia-smi.
func NewHostProber() *HostProber {
	return &HostProber{Binary: NvidiaSMICommand}
}

// WithCommandRunner sets a custom command runner (for testing).
func (p *HostProber) WithCommandRunner(runner CommandRunner) {
	p.run = runner
}

// ProbeAccelerator returns the first GPU listed by nvidia-smi.
func (p *HostProber) ProbeAccelerator(ctx context.Context) (Accelerator, error) {
	binary := p.Binary
	if binary == "" {
		binary = NvidiaSMICommand
	}
	runner := p.run
	if runner == nil {
		runner = execOutput
	}
	output, err := runner(ctx, binary, "--query-gpu=name,memory.total", "--format=csv,noheader,nounits")
	if err != nil {
		return Accelerator{}, fmt.Errorf("%w: %v", ErrNoAccelerator, err)
	}
	return parseNvidiaSMI(output)
}

// SystemMemoryGB returns total system RAM.
func (p *HostProber) SystemMemoryGB() (float64, error) {
	return systemMemoryGB()
}

func execOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return output, nil
}

// parseNvidiaSMI reads "name, memory_mib" lines and returns the first entry.
func parseNvidiaSMI(output []byte) (Accelerator, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ",")
		if idx <= 0 {
			return Accelerator{}, fmt.Errorf("%w: unexpected nvidia-smi line %q", ErrNoAccelerator, line)
		}
		mib, err := strconv.ParseFloat(strings.TrimSpace(line[idx+1:]), 64)
		if err != nil {
			return Accelerator{}, fmt.Errorf("%w: parse memory: %v", ErrNoAccelerator, err)
		}
		return Accelerator{
			Name:     strings.TrimSpace(line[:idx]),
			MemoryGB: mib / 1024,
		}, nil
	}
	return Accelerator{}, ErrNoAccelerator
}
