// Package patterns infers recurring (type, weekday, time-of-day) habits from
// a user's session history.
package patterns

import (
	"math"
	"sort"
	"time"

	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/timewindow"
)

// Config tunes clustering and filtering.
type Config struct {
	MinFrequency    int           // clusters below this are noise
	RoundTo         time.Duration // cluster centers snap to this grid
	Tolerance       time.Duration // max distance from a center to join it
	HalfLifeDays    float64       // recency decay half-life
	SuccessDeadBand float64       // success rates closer than this sort as equal
	NonRecurring    []schedule.SessionType
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		MinFrequency:    3,
		RoundTo:         30 * time.Minute,
		Tolerance:       15 * time.Minute,
		HalfLifeDays:    30,
		SuccessDeadBand: 0.1,
		NonRecurring:    []schedule.SessionType{schedule.TypeClientMeeting},
	}
}

// Detector clusters sessions into patterns. It holds no state between calls.
type Detector struct {
	cfg Config
}

// NewDetector creates a Detector. Zero-valued fields fall back to DefaultConfig.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.MinFrequency <= 0 {
		cfg.MinFrequency = def.MinFrequency
	}
	if cfg.RoundTo <= 0 {
		cfg.RoundTo = def.RoundTo
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.HalfLifeDays <= 0 {
		cfg.HalfLifeDays = def.HalfLifeDays
	}
	if cfg.SuccessDeadBand <= 0 {
		cfg.SuccessDeadBand = def.SuccessDeadBand
	}
	if cfg.NonRecurring == nil {
		cfg.NonRecurring = def.NonRecurring
	}
	return &Detector{cfg: cfg}
}

// DetectPatterns runs a default Detector after validating the timezone.
func DetectPatterns(sessions []schedule.Session, timezone string, now time.Time) ([]schedule.Pattern, error) {
	loc, err := timewindow.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return NewDetector(DefaultConfig()).Detect(sessions, loc, now), nil
}

// Detect clusters past, completed, non-deleted sessions by local weekday and
// fuzzy time of day. Missed sessions never form a habit. The result is sorted
// strongest first and never nil.
func (d *Detector) Detect(sessions []schedule.Session, loc *time.Location, now time.Time) []schedule.Pattern {
	if loc == nil {
		loc = time.UTC
	}
	ordered := d.eligible(sessions, now)

	type key struct {
		typ schedule.SessionType
		day time.Weekday
	}
	clusters := make(map[key][]int) // indices into accs
	var accs []accumulator

	tolerance := int(d.cfg.Tolerance / time.Minute)
	for _, s := range ordered {
		local := timewindow.ToLocal(s.StartTime, loc)
		minutes := int(local.Time)
		k := key{typ: s.Type, day: local.Weekday}

		idx := -1
		bestDist := tolerance + 1
		for _, ci := range clusters[k] {
			dist := absInt(minutes - accs[ci].center)
			if dist <= tolerance && dist < bestDist {
				idx, bestDist = ci, dist
			}
		}
		if idx < 0 {
			accs = append(accs, newAccumulator(s.Type, local.Weekday, d.roundMinutes(minutes)))
			idx = len(accs) - 1
			clusters[k] = append(clusters[k], idx)
		}
		accs[idx] = accs[idx].add(s, now, d.cfg.HalfLifeDays)
	}

	out := make([]schedule.Pattern, 0, len(accs))
	for _, a := range accs {
		if a.frequency < d.cfg.MinFrequency {
			continue
		}
		out = append(out, a.pattern())
	}
	d.sortPatterns(out)
	return out
}

func (d *Detector) eligible(sessions []schedule.Session, now time.Time) []schedule.Session {
	skip := make(map[schedule.SessionType]bool, len(d.cfg.NonRecurring))
	for _, t := range d.cfg.NonRecurring {
		skip[t] = true
	}

	out := make([]schedule.Session, 0, len(sessions))
	for _, s := range sessions {
		if skip[s.Type] || s.DeletedAt != nil || !s.Completed {
			continue
		}
		if s.StartTime.IsZero() || !s.EndTime.After(s.StartTime) || s.StartTime.After(now) {
			continue
		}
		out = append(out, s)
	}
	// Chronological order makes "first seen" well defined.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// roundMinutes snaps m to the nearest grid point, staying within the day.
func (d *Detector) roundMinutes(m int) int {
	step := int(d.cfg.RoundTo / time.Minute)
	if step <= 0 {
		return m
	}
	r := int(math.Round(float64(m)/float64(step))) * step
	if r >= int(schedule.EndOfDay) {
		r = int(schedule.EndOfDay) - step
	}
	return r
}

func (d *Detector) sortPatterns(ps []schedule.Pattern) {
	band := d.cfg.SuccessDeadBand
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if math.Abs(a.SuccessRate-b.SuccessRate) >= band {
			return a.SuccessRate > b.SuccessRate
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		if a.RecencyWeight != b.RecencyWeight {
			return a.RecencyWeight > b.RecencyWeight
		}
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.Hour*60+a.Minute != b.Hour*60+b.Minute {
			return a.Hour*60+a.Minute < b.Hour*60+b.Minute
		}
		return a.Type < b.Type
	})
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
