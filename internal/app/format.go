package app

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatTime renders t relative to now for list entries; anything older than a week gets a date.
func FormatTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < 7*24*time.Hour:
		return humanize.RelTime(t, now, "ago", "from now")
	}
	return t.Format("2006-01-02")
}
