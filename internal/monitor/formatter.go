package monitor

import "fmt"

// FormatRate formats a rate value as "X.X calls/min".
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f calls/min", rate)
}

// FormatLatency formats a duration in seconds as "X.Xms" or "X.Xs".
func FormatLatency(seconds float64) string {
	if seconds < 1.0 {
		return fmt.Sprintf("%.1fms", seconds*1000)
	}
	return fmt.Sprintf("%.1fs", seconds)
}

// FormatPercentage formats a ratio (0-1) as a percentage.
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatDuration formats a duration in seconds to "Xh Ym" or "Xm".
func FormatDuration(seconds int64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
