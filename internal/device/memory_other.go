//go:build !linux

package device

import "errors"

func systemMemoryGB() (float64, error) {
	return 0, errors.New("system memory query unsupported on this platform")
}
