// Package device derives the compute profile scribe runs with.
//
// A Resolver probes the host once (nvidia-smi for accelerators, sysinfo for
// RAM) and caches the resulting Profile for the life of the process. Probe
// failures are never fatal: the resolver falls back to the CPU profile.
package device
