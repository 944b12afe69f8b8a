package reaper

import (
	"fmt"
	"time"
)

// FormatSeconds renders seconds as HH:MM:SS, zero padded, with a leading minus sign for
// negative values. Hours are not capped at 24.
func FormatSeconds(seconds int64) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, seconds/3600, seconds%3600/60, seconds%60)
}

// FormatDuration renders d truncated to whole seconds with FormatSeconds.
func FormatDuration(d time.Duration) string {
	return FormatSeconds(int64(d / time.Second))
}
