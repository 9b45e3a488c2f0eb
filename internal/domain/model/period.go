package model

import (
	"fmt"
	"time"
)

// ISOWeek returns the period marker for the ISO week containing t in UTC,
// e.g. "2026-W01".
func ISOWeek(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// PeriodMarker returns the marker of the reporting window containing t for
// a leaderboard period. Unknown periods fall back to the calendar day.
func PeriodMarker(period string, t time.Time) string {
	t = t.UTC()
	switch period {
	case "week":
		return ISOWeek(t)
	case "month":
		return t.Format("2006-01")
	case "year":
		return t.Format("2006")
	default:
		return t.Format("2006-01-02")
	}
}
