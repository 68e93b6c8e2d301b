package suggest

import (
	"time"

	"github.com/kalambet/cadence/internal/schedule"
)

// Options narrows a single SuggestTimeSlots request. A zero field means the
// caller left it unset and takes its default; negative values are rejected.
type Options struct {
	StartDate      *time.Time             `json:"start_date,omitempty"`
	LookAheadDays  int                    `json:"look_ahead_days,omitempty"`
	PreferredTypes []schedule.SessionType `json:"preferred_types,omitempty"`
	MinPriority    int                    `json:"min_priority,omitempty"`
	MaxPriority    int                    `json:"max_priority,omitempty"`
}

// window is the validated look-ahead range of a request.
type window struct {
	start time.Time
	end   time.Time
	days  int
}

// resolve validates o and returns the effective look-ahead window. Invalid
// input is rejected, never coerced.
func (o Options) resolve(now time.Time, cfg Config) (Options, window, error) {
	const op = "suggest options"
	if o.LookAheadDays == 0 {
		o.LookAheadDays = cfg.DefaultLookAheadDays
	}
	if o.LookAheadDays < 1 || o.LookAheadDays > cfg.MaxLookAheadDays {
		return o, window{}, schedule.Validationf(op, "look_ahead_days must be between 1 and %d", cfg.MaxLookAheadDays)
	}
	for _, p := range []int{o.MinPriority, o.MaxPriority} {
		if p != 0 && (p < schedule.MinPriority || p > schedule.MaxPriority) {
			return o, window{}, schedule.Validationf(op, "priority bounds must be between %d and %d", schedule.MinPriority, schedule.MaxPriority)
		}
	}
	if o.MinPriority == 0 {
		o.MinPriority = schedule.MinPriority
	}
	if o.MaxPriority == 0 {
		o.MaxPriority = schedule.MaxPriority
	}
	if o.MinPriority > o.MaxPriority {
		return o, window{}, schedule.Validationf(op, "min_priority must not exceed max_priority")
	}
	for _, t := range o.PreferredTypes {
		if !t.Valid() {
			return o, window{}, schedule.Validationf(op, "unknown session type %q", t)
		}
	}

	horizon := time.Duration(o.LookAheadDays) * 24 * time.Hour
	start := now
	if o.StartDate != nil {
		if o.StartDate.After(now.Add(horizon)) {
			return o, window{}, schedule.Validationf(op, "start_date must be within %d days of now", o.LookAheadDays)
		}
		if o.StartDate.After(now) {
			start = o.StartDate.UTC()
		}
	}
	return o, window{start: start, end: start.Add(horizon), days: o.LookAheadDays}, nil
}

func (o Options) allowsType(t schedule.SessionType) bool {
	if len(o.PreferredTypes) == 0 {
		return true
	}
	for _, p := range o.PreferredTypes {
		if p == t {
			return true
		}
	}
	return false
}

func (o Options) allowsPriority(p int) bool {
	return p >= o.MinPriority && p <= o.MaxPriority
}

func (o Options) clampPriority(p int) int {
	if p < o.MinPriority {
		return o.MinPriority
	}
	if p > o.MaxPriority {
		return o.MaxPriority
	}
	return p
}
