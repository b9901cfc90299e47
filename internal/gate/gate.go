// Package gate decides whether a class of announcement may play at a given
// time. All functions are pure.
package gate

import (
	"time"

	"github.com/hammamikhairi/gatecaller/internal/domain"
)

// Season selects the baggage announcement window.
type Season int

const (
	Summer Season = iota
	Winter
)

// String returns the season name.
func (s Season) String() string {
	if s == Winter {
		return "winter"
	}
	return "summer"
}

// Window is a daily time range in minutes since midnight, inclusive on
// both ends.
type Window struct {
	Start int
	End   int
}

// Contains reports whether the wall-clock minute of t is inside the window.
func (w Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	return m >= w.Start && m <= w.End
}

// Baggage announcement windows.
var (
	WinterWindow = Window{Start: 7 * 60, End: 16*60 + 30}
	SummerWindow = Window{Start: 6 * 60, End: 20 * 60}
)

// TickMinutes is the cadence of recurring general announcements.
const TickMinutes = 30

// SeasonOf returns Winter for October through March by month index only.
// Day of month and year boundaries are deliberately ignored.
func SeasonOf(t time.Time) Season {
	m := t.Month()
	if m >= time.October || m <= time.March {
		return Winter
	}
	return Summer
}

// BaggageWindow returns the window in force on the day of t.
func BaggageWindow(t time.Time) Window {
	if SeasonOf(t) == Winter {
		return WinterWindow
	}
	return SummerWindow
}

// IsPermitted reports whether an announcement of the given class may play
// at now. Only baggage announcements are time restricted.
func IsPermitted(class domain.CallType, now time.Time) bool {
	if class != domain.CallBaggage {
		return true
	}
	return BaggageWindow(now).Contains(now)
}

// IsTick reports whether now falls on a recurring announcement tick: the
// minute-of-hour is an exact multiple of TickMinutes.
func IsTick(now time.Time) bool {
	return now.Minute()%TickMinutes == 0
}
