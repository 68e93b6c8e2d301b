package suggest

import (
	"sort"
	"time"

	"github.com/kalambet/cadence/internal/availability"
	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/timewindow"
)

const (
	dropPast         = "past"
	dropWindow       = "outside_window"
	dropAvailability = "availability"
	dropConflict     = "conflict"
	dropUnchecked    = "conflict_unknown"
	dropCap          = "candidate_cap"
	dropSpacing      = "spacing"

	defaultSlotGrid = 15 // minutes
)

// generator produces concrete future slots for one request. It is not safe
// for concurrent use; each request builds its own.
type generator struct {
	cfg     Config
	opts    Options
	win     window
	now     time.Time
	loc     *time.Location
	checker *availability.Checker

	examined int
	drops    map[string]int
}

func newGenerator(cfg Config, opts Options, win window, now time.Time, checker *availability.Checker) *generator {
	return &generator{
		cfg:     cfg,
		opts:    opts,
		win:     win,
		now:     now,
		loc:     checker.Location(),
		checker: checker,
		drops:   make(map[string]int),
	}
}

// admit counts one examined slot and reports whether the hard cap allows it.
func (g *generator) admit() bool {
	if g.examined >= g.cfg.MaxCandidates {
		g.drops[dropCap]++
		return false
	}
	g.examined++
	return true
}

// accept applies the time and availability rules shared by both modes.
func (g *generator) accept(start, end time.Time) bool {
	switch {
	case start.Before(g.now):
		g.drops[dropPast]++
	case start.Before(g.win.start) || end.After(g.win.end):
		g.drops[dropWindow]++
	case !g.checker.Check(start, end).Valid:
		g.drops[dropAvailability]++
	default:
		return true
	}
	return false
}

// fromPatterns emits one slot per pattern per week of the look-ahead window.
func (g *generator) fromPatterns(ps []schedule.Pattern) []candidate {
	var out []candidate
	localStart := g.win.start.In(g.loc)
	for i := range ps {
		p := ps[i]
		dur := time.Duration(p.DurationMinutes) * time.Minute
		if dur <= 0 {
			dur = g.cfg.DefaultDuration
		}
		for d := timewindow.NextWeekday(localStart, p.DayOfWeek); d.Before(g.win.end); d = d.AddDate(0, 0, 7) {
			if !g.admit() {
				return out
			}
			start := timewindow.LocalToUTC(d, p.Hour, p.Minute, g.loc)
			end := start.Add(dur)
			if !g.accept(start, end) {
				continue
			}
			out = append(out, candidate{
				typ:      p.Type,
				title:    p.Title,
				start:    start,
				end:      end,
				priority: schedule.ClampPriority(p.Priority),
				pattern:  &p,
			})
		}
	}
	return out
}

// dayOption is the preferred default slot on one local day.
type dayOption struct {
	start, end time.Time
	fatigue    float64
}

// defaultDays proposes at most one slot per local day: the midpoint of the
// largest free stretch of availability. Days whose fatigue reaches the skip
// threshold are left out. Options are ordered by fatigue, then date.
func (g *generator) defaultDays(snap *snapshot, scorer *Scorer) []dayOption {
	dur := g.cfg.DefaultDuration
	durMin := int(dur / time.Minute)

	var out []dayOption
	first := timewindow.StartOfDay(g.win.start.In(g.loc))
	for d := first; d.Before(g.win.end); d = d.AddDate(0, 0, 1) {
		key := timewindow.DateKey(d)
		fatigue, _ := scorer.fatigue(snap.day(key), false)
		if fatigue >= scorer.w.FatigueSkipThreshold {
			continue
		}

		seg, ok := largestFree(g.checker.Windows(d.Weekday()), busyOn(snap.day(key), d, g.loc), durMin)
		if !ok {
			continue
		}
		if !g.admit() {
			break
		}

		startMin := int(seg.Start) + (seg.Length()-durMin)/2
		startMin -= startMin % defaultSlotGrid
		if startMin < int(seg.Start) {
			startMin = int(seg.Start)
		}
		start := timewindow.LocalToUTC(d, startMin/60, startMin%60, g.loc)
		end := start.Add(dur)
		if !g.accept(start, end) {
			continue
		}
		out = append(out, dayOption{start: start, end: end, fatigue: fatigue})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].fatigue != out[j].fatigue {
			return out[i].fatigue < out[j].fatigue
		}
		return out[i].start.Before(out[j].start)
	})
	return out
}

// assignDefaults gives each default type its own day, keeping MinSpacing
// between default slots. free reports whether option i passed conflict checks.
func (g *generator) assignDefaults(types []schedule.SessionType, days []dayOption, free func(i int) bool, minSpacing time.Duration) []candidate {
	priority := g.opts.clampPriority(g.cfg.DefaultPriority)
	used := make(map[string]bool)
	var out []candidate
	for _, t := range types {
		for i, opt := range days {
			key := timewindow.DateKey(opt.start.In(g.loc))
			if used[key] || !free(i) {
				continue
			}
			if tooCloseTo(opt.start, opt.end, out, minSpacing) {
				g.drops[dropSpacing]++
				continue
			}
			used[key] = true
			out = append(out, candidate{
				typ:      t,
				title:    t.Label(),
				start:    opt.start,
				end:      opt.end,
				priority: priority,
			})
			break
		}
	}
	return out
}

func tooCloseTo(start, end time.Time, picked []candidate, minSpacing time.Duration) bool {
	for _, c := range picked {
		if timewindow.Gap(start, end, c.start, c.end) < minSpacing {
			return true
		}
	}
	return false
}

// busyOn converts the day's sessions into merged local ranges on date d.
func busyOn(day []schedule.Session, d time.Time, loc *time.Location) []schedule.AvailabilityWindow {
	var busy []schedule.AvailabilityWindow
	for _, s := range day {
		ls := timewindow.ToLocal(s.StartTime, loc)
		le := timewindow.ToLocal(s.EndTime, loc)
		end := le.Time
		if !timewindow.SameDate(le.Date, d) {
			end = schedule.EndOfDay
		}
		if end > ls.Time {
			busy = append(busy, schedule.AvailabilityWindow{Start: ls.Time, End: end})
		}
	}
	return timewindow.MergeAll(busy)
}

// largestFree subtracts busy ranges from each window and returns the longest
// remaining segment of at least minLen minutes. Ties keep the earliest.
func largestFree(windows, busy []schedule.AvailabilityWindow, minLen int) (schedule.AvailabilityWindow, bool) {
	var best schedule.AvailabilityWindow
	found := false
	for _, w := range windows {
		for _, seg := range subtract(w, busy) {
			if seg.Length() < minLen {
				continue
			}
			if !found || seg.Length() > best.Length() {
				best, found = seg, true
			}
		}
	}
	return best, found
}

// subtract returns the parts of w not covered by busy (sorted, merged).
func subtract(w schedule.AvailabilityWindow, busy []schedule.AvailabilityWindow) []schedule.AvailabilityWindow {
	var out []schedule.AvailabilityWindow
	cursor := w.Start
	for _, b := range busy {
		if b.End <= cursor || b.Start >= w.End {
			continue
		}
		if b.Start > cursor {
			out = append(out, schedule.AvailabilityWindow{Start: cursor, End: b.Start})
		}
		if b.End > cursor {
			cursor = b.End
		}
	}
	if cursor < w.End {
		out = append(out, schedule.AvailabilityWindow{Start: cursor, End: w.End})
	}
	return out
}
