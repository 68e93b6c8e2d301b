// Package availability decides whether a UTC interval falls inside a user's
// local weekly availability.
package availability

import (
	"time"

	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/timewindow"
)

const (
	ReasonOK           = "within availability"
	ReasonNoDay        = "no availability for that day"
	ReasonOutside      = "outside availability window"
	ReasonInvalidRange = "end must be after start"
	ReasonMultiDay     = "slot spans more than one day"
)

// Result is the outcome of a Check.
type Result struct {
	Valid  bool
	Reason string
}

// Checker tests intervals against one user's weekly windows.
type Checker struct {
	windows schedule.WeeklyAvailability
	loc     *time.Location
}

// NewChecker creates a Checker. Windows are assumed validated by the store.
func NewChecker(windows schedule.WeeklyAvailability, loc *time.Location) *Checker {
	if loc == nil {
		loc = time.UTC
	}
	return &Checker{windows: windows, loc: loc}
}

// Location returns the timezone used for local conversion.
func (c *Checker) Location() *time.Location { return c.loc }

// Windows returns the configured windows for a weekday.
func (c *Checker) Windows(day time.Weekday) []schedule.AvailabilityWindow {
	return c.windows[day]
}

// HasAny reports whether any window is configured.
func (c *Checker) HasAny() bool {
	return !c.windows.Empty()
}

// Check reports whether [start, end) lies fully inside a single window of its
// local day. A slot crossing local midnight must be covered by a window that
// runs to 24:00 on the first day and one that starts at 00:00 on the next.
func (c *Checker) Check(start, end time.Time) Result {
	if !end.After(start) {
		return Result{Reason: ReasonInvalidRange}
	}
	ls := timewindow.ToLocal(start, c.loc)
	le := timewindow.ToLocal(end, c.loc)

	if timewindow.SameDate(ls.Date, le.Date) {
		return c.within(ls.Weekday, ls.Time, le.Time)
	}

	nextDay := ls.Date.AddDate(0, 0, 1)
	if !timewindow.SameDate(nextDay, le.Date) {
		return Result{Reason: ReasonMultiDay}
	}
	head := c.within(ls.Weekday, ls.Time, schedule.EndOfDay)
	if !head.Valid || le.Time == 0 {
		return head
	}
	return c.within(le.Weekday, 0, le.Time)
}

func (c *Checker) within(day time.Weekday, start, end schedule.TimeOfDay) Result {
	ws := c.windows[day]
	if len(ws) == 0 {
		return Result{Reason: ReasonNoDay}
	}
	for _, w := range ws {
		if w.Contains(start, end) {
			return Result{Valid: true, Reason: ReasonOK}
		}
	}
	return Result{Reason: ReasonOutside}
}
