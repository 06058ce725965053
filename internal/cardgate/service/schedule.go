package service

import (
	"time"

	"github.com/cardgate/cardgate/internal/cardgate/store"
)

// grantActive reports whether a grant authorizes entry at the given
// access point at the given moment. The moment is taken in its own
// location; the reader's clock is the authority on local time.
func grantActive(g store.Grant, ap store.AccessPoint, at time.Time) bool {
	if g.Level < ap.RequiredLevel {
		return false
	}
	if len(g.Days) > 0 && !containsDay(g.Days, at.Weekday()) {
		return false
	}
	if g.Window != nil && !windowContains(*g.Window, minuteOfDay(at)) {
		return false
	}
	return true
}

func containsDay(days []time.Weekday, d time.Weekday) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}

// windowContains checks a half-open daily window [start, end) in
// minutes from midnight. End before start means the window wraps past
// midnight (e.g. 22:00-06:00). Start equal to end is an empty window.
func windowContains(w store.TimeWindow, minute int) bool {
	if w.StartMin <= w.EndMin {
		return minute >= w.StartMin && minute < w.EndMin
	}
	return minute >= w.StartMin || minute < w.EndMin
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
