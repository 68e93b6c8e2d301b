// Package timewindow converts between UTC instants and local wall-clock times
// and provides half-open interval primitives.
package timewindow

import (
	"fmt"
	"sort"
	"time"

	"github.com/kalambet/cadence/internal/schedule"
)

// LoadLocation resolves an IANA timezone name. An empty name is rejected
// rather than silently mapped to UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, schedule.Validationf("load timezone", "timezone is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, schedule.E(schedule.KindValidation, "load timezone", fmt.Errorf("invalid timezone %q: %w", name, err))
	}
	return loc, nil
}

// LocalToUTC returns the instant at which the wall clock in loc shows
// hour:minute on the calendar date of day (only year/month/day of day are used).
// Wall-clock times skipped by a DST transition are normalised forward.
func LocalToUTC(day time.Time, hour, minute int, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc).UTC()
}

// WallClockExists reports whether hour:minute occurs on the given date in loc.
func WallClockExists(day time.Time, hour, minute int, loc *time.Location) bool {
	t := LocalToUTC(day, hour, minute, loc).In(loc)
	y, m, d := day.Date()
	ty, tm, td := t.Date()
	return ty == y && tm == m && td == d && t.Hour() == hour && t.Minute() == minute
}

// Local is a UTC instant viewed in a local timezone.
type Local struct {
	Date    time.Time // midnight of the local calendar date, in loc
	Weekday time.Weekday
	Time    schedule.TimeOfDay
}

// ToLocal converts t into loc and splits it into date, weekday and time of day.
func ToLocal(t time.Time, loc *time.Location) Local {
	lt := t.In(loc)
	return Local{
		Date:    StartOfDay(lt),
		Weekday: lt.Weekday(),
		Time:    schedule.NewTimeOfDay(lt.Hour(), lt.Minute()),
	}
}

// StartOfDay returns local midnight for t's calendar date in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateKey formats t's calendar date as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// NextWeekday returns the first date on or after from that falls on wd,
// preserving from's location.
func NextWeekday(from time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(from.Weekday()) + 7) % 7
	return StartOfDay(from).AddDate(0, 0, delta)
}

// Overlaps tests half-open intervals [s1,e1) and [s2,e2) for overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// RangesOverlap is Overlaps for schedule.TimeRange values.
func RangesOverlap(a, b schedule.TimeRange) bool {
	return Overlaps(a.Start, a.End, b.Start, b.End)
}

// Gap returns the time between two non-overlapping intervals, or zero if they
// overlap.
func Gap(s1, e1, s2, e2 time.Time) time.Duration {
	switch {
	case !e1.After(s2):
		return s2.Sub(e1)
	case !e2.After(s1):
		return s1.Sub(e2)
	default:
		return 0
	}
}

// MergeRanges unions two local ranges. ok is false when they neither overlap
// nor touch.
func MergeRanges(a, b schedule.AvailabilityWindow) (merged schedule.AvailabilityWindow, ok bool) {
	if a.Start > b.End || b.Start > a.End {
		return schedule.AvailabilityWindow{}, false
	}
	merged = a
	if b.Start < merged.Start {
		merged.Start = b.Start
	}
	if b.End > merged.End {
		merged.End = b.End
	}
	return merged, true
}

// MergeAll sorts windows and unions every overlapping or touching pair. The
// input slice is not modified.
func MergeAll(ws []schedule.AvailabilityWindow) []schedule.AvailabilityWindow {
	if len(ws) == 0 {
		return nil
	}
	sorted := make([]schedule.AvailabilityWindow, len(ws))
	copy(sorted, ws)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	out := []schedule.AvailabilityWindow{sorted[0]}
	for _, w := range sorted[1:] {
		last := &out[len(out)-1]
		if m, ok := MergeRanges(*last, w); ok {
			*last = m
			continue
		}
		out = append(out, w)
	}
	return out
}
