//go:build linux

package device

import "golang.org/x/sys/unix"

func systemMemoryGB() (float64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, err
	}
	total := float64(info.Totalram) * float64(info.Unit)
	return total / (1024 * 1024 * 1024), nil
}
