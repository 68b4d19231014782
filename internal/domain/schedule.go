// Package domain defines the core entities and contracts for the warden
// supervisor: the daily schedule window, restart throttling, run identity,
// and the ports the use cases drive infrastructure through.
package domain

import (
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses a 24-hour "HH:MM" string.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%q is not a HH:MM clock time", s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Minutes returns the time of day as minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// String formats the time as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Window is the daily interval [Start, End) during which the server should
// be running. A window whose Start is later than its End wraps past
// midnight (for example 22:00 to 06:00).
type Window struct {
	Start ClockTime
	End   ClockTime
}

// NewWindow builds a window from two "HH:MM" strings. Equal start and end
// times are rejected: they describe a window that never opens.
func NewWindow(start, end string) (Window, error) {
	s, err := ParseClockTime(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClockTime(end)
	if err != nil {
		return Window{}, err
	}
	if s == e {
		return Window{}, fmt.Errorf("window start and end are both %s", s)
	}
	return Window{Start: s, End: e}, nil
}

// Contains reports whether the wall-clock time of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	cur := secondOfDay(t)
	start := w.Start.Minutes() * 60
	end := w.End.Minutes() * 60
	if start <= end {
		return cur >= start && cur < end
	}
	return cur >= start || cur < end
}

// UntilClose returns the time remaining until the window closes. The result
// is only meaningful when Contains(t) is true.
func (w Window) UntilClose(t time.Time) time.Duration {
	cur := secondOfDay(t)
	end := w.End.Minutes() * 60
	remaining := end - cur
	if w.Start.Minutes() > w.End.Minutes() && cur >= end {
		remaining += 24 * 60 * 60
	}
	return time.Duration(remaining) * time.Second
}

// String formats the window as "HH:MM-HH:MM".
func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
