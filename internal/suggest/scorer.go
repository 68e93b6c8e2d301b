package suggest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/timewindow"
)

const (
	reasonPatternFallback = "based on your schedule patterns"
	reasonDefault         = "default suggestion to get you started"
	reasonCloseSession    = "less than 2h from another session"
	reasonBackToBack      = "back-to-back high-priority sessions"
	reasonWellSpaced      = "well spaced from other sessions"
	reasonHighPriorityDay = "many high-priority sessions that day"
	reasonBusyDay         = "busy day"
	reasonSoon            = "coming up soon"
	reasonHighPriority    = "high-priority habit"
	reasonRecent          = "recently active habit"
	reasonCloseSuggestion = "close to another suggestion"
)

// candidate is a concrete slot before scoring. pattern is nil for default
// suggestions.
type candidate struct {
	typ      schedule.SessionType
	title    string
	start    time.Time
	end      time.Time
	priority int
	pattern  *schedule.Pattern
}

func (c candidate) timeRange() schedule.TimeRange {
	return schedule.TimeRange{Start: c.start, End: c.end}
}

// scored is a candidate with its order-independent score. The run-dependent
// spacing term is applied during selection.
type scored struct {
	candidate
	dateKey string
	base    float64
	reasons []string
}

// snapshot indexes the user's active sessions by local calendar date.
type snapshot struct {
	loc    *time.Location
	active []schedule.Session
	byDate map[string][]schedule.Session
}

func newSnapshot(active []schedule.Session, loc *time.Location) *snapshot {
	s := &snapshot{loc: loc, byDate: make(map[string][]schedule.Session)}
	for _, sess := range active {
		if !sess.Active() {
			continue
		}
		s.active = append(s.active, sess)
		key := timewindow.DateKey(sess.StartTime.In(loc))
		s.byDate[key] = append(s.byDate[key], sess)
	}
	for _, day := range s.byDate {
		sort.SliceStable(day, func(i, j int) bool { return day[i].StartTime.Before(day[j].StartTime) })
	}
	return s
}

func (s *snapshot) dateKey(t time.Time) string {
	return timewindow.DateKey(t.In(s.loc))
}

func (s *snapshot) day(key string) []schedule.Session {
	return s.byDate[key]
}

// countOverlapping returns how many active sessions overlap [start, end).
func (s *snapshot) countOverlapping(start, end time.Time) int {
	n := 0
	for _, sess := range s.active {
		if timewindow.Overlaps(sess.StartTime, sess.EndTime, start, end) {
			n++
		}
	}
	return n
}

// Scorer computes desirability scores. It is a pure function of its inputs.
type Scorer struct {
	w   Weights
	now time.Time
}

// NewScorer creates a Scorer evaluating candidates relative to now.
func NewScorer(w Weights, now time.Time) *Scorer {
	return &Scorer{w: w, now: now}
}

func (s *Scorer) score(c candidate, snap *snapshot) scored {
	out := scored{candidate: c, dateKey: snap.dateKey(c.start)}
	var total float64
	add := func(v float64, reason string) {
		total += v
		if reason != "" {
			out.reasons = append(out.reasons, reason)
		}
	}

	if p := c.pattern; p != nil {
		total = s.w.PatternBase
		freq := math.Min(float64(p.Frequency)*s.w.FrequencyMultiplier, s.w.FrequencyCap)
		add(freq, fmt.Sprintf("done %d times on %ss around %02d:%02d", p.Frequency, p.DayOfWeek, p.Hour, p.Minute))

		reason := ""
		if p.SuccessRate >= s.w.HighSuccessThreshold {
			reason = fmt.Sprintf("high completion rate (%d%%)", int(math.Round(p.SuccessRate*100)))
		}
		add(math.Round(p.SuccessRate*s.w.SuccessWeight), reason)

		reason = ""
		if p.RecencyWeight >= 0.5 {
			reason = reasonRecent
		}
		add(math.Round(p.RecencyWeight*s.w.RecencyWeight), reason)
	} else {
		total = s.w.DefaultBase
		out.reasons = append(out.reasons, reasonDefault)
	}

	day := snap.day(out.dateKey)
	spacing, spacingReasons := s.spacing(c, day)
	total += spacing
	out.reasons = append(out.reasons, spacingReasons...)

	fatigue, fatigueReasons := s.fatigue(day, c.priority >= s.w.HighPriority)
	total -= fatigue
	out.reasons = append(out.reasons, fatigueReasons...)

	if until := c.start.Sub(s.now); until >= 0 && until <= s.w.NearTermWindow {
		add(s.w.NearTermBonus, reasonSoon)
	}
	if c.pattern != nil && c.pattern.Priority >= s.w.HighPriority {
		add(s.w.PriorityBonus, reasonHighPriority)
	}

	if len(out.reasons) == 0 {
		out.reasons = append(out.reasons, reasonPatternFallback)
	}
	out.base = total
	return out
}

// spacing starts at SpacingMax and is reduced for every same-day session
// closer than MinSpacing, proportionally to how much closer it is.
func (s *Scorer) spacing(c candidate, day []schedule.Session) (float64, []string) {
	score := s.w.SpacingMax
	var reasons []string
	tooClose, backToBack := false, false
	nearest := time.Duration(-1)

	for _, sess := range day {
		gap := timewindow.Gap(c.start, c.end, sess.StartTime, sess.EndTime)
		if nearest < 0 || gap < nearest {
			nearest = gap
		}
		if gap >= s.w.MinSpacing {
			continue
		}
		tooClose = true
		score -= s.w.ClosePenalty * float64(s.w.MinSpacing-gap) / float64(s.w.MinSpacing)
		if c.priority >= s.w.HighPriority && sess.Priority >= s.w.HighPriority {
			score -= s.w.HighPriorityPenalty
			backToBack = true
		}
	}

	if tooClose {
		reasons = append(reasons, reasonCloseSession)
	}
	if backToBack {
		reasons = append(reasons, reasonBackToBack)
	}
	if nearest >= s.w.IdealSpacingMin && nearest <= s.w.IdealSpacingMax {
		score += s.w.IdealSpacingBonus
		reasons = append(reasons, reasonWellSpaced)
	}
	return score, reasons
}

// fatigue penalises days that are already dense. candidateHigh counts the
// candidate itself toward the high-priority cap.
func (s *Scorer) fatigue(day []schedule.Session, candidateHigh bool) (float64, []string) {
	high := 0
	if candidateHigh {
		high++
	}
	for _, sess := range day {
		if sess.Priority >= s.w.HighPriority {
			high++
		}
	}

	var penalty float64
	var reasons []string
	if over := high - s.w.FatigueHighPriorityCap; over > 0 {
		penalty += float64(over) * s.w.FatigueHighPriorityPenalty
		reasons = append(reasons, reasonHighPriorityDay)
	}
	if len(day) >= s.w.FatigueDailyCap {
		penalty += s.w.FatigueDailyPenalty
		reasons = append(reasons, reasonBusyDay)
	}
	return penalty, reasons
}

// runPenalty is the spacing term against suggestions already selected in
// this run.
func (s *Scorer) runPenalty(c scored, selected []scored) float64 {
	var penalty float64
	for _, other := range selected {
		if other.dateKey != c.dateKey {
			continue
		}
		if timewindow.Gap(c.start, c.end, other.start, other.end) < s.w.MinSpacing {
			penalty += s.w.SelectedPenalty
		}
	}
	return penalty
}

func clampScore(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}
