package enrich

import "fmt"

// FormatTime renders seconds as HH:MM:SS using integer truncation. Negative
// input renders as 00:00:00.
func FormatTime(seconds float64) string {
	if seconds < 0 || seconds != seconds {
		return "00:00:00"
	}
	total := int64(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}
