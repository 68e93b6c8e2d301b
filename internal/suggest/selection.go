package suggest

import (
	"sort"

	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/timewindow"
)

// sortScored orders candidates by base score, breaking ties on start time,
// type and title so the result does not depend on generation order.
func sortScored(cs []scored) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.base != b.base {
			return a.base > b.base
		}
		if !a.start.Equal(b.start) {
			return a.start.Before(b.start)
		}
		if a.typ != b.typ {
			return a.typ < b.typ
		}
		return a.title < b.title
	})
}

// selector applies the diversity caps while picking the best remaining
// candidate one at a time. Each pick re-scores the rest against what is
// already selected, so a slot crowded by an earlier pick falls behind.
type selector struct {
	cfg    Config
	scorer *Scorer

	selected []scored
	final    []float64
	perDay   map[string]int
	perType  map[schedule.SessionType]int
}

func newSelector(cfg Config, scorer *Scorer) *selector {
	return &selector{
		cfg:     cfg,
		scorer:  scorer,
		perDay:  make(map[string]int),
		perType: make(map[schedule.SessionType]int),
	}
}

func (s *selector) full() bool {
	return len(s.selected) >= s.cfg.MaxSuggestions
}

func (s *selector) allowed(c scored) bool {
	if s.perDay[c.dateKey] >= s.cfg.MaxPerDay || s.perType[c.typ] >= s.cfg.MaxPerType {
		return false
	}
	for _, o := range s.selected {
		if timewindow.Overlaps(c.start, c.end, o.start, o.end) {
			return false
		}
	}
	return true
}

// run selects from cs, which must already be ordered by sortScored.
func (s *selector) run(cs []scored) {
	taken := make([]bool, len(cs))
	for !s.full() {
		best, bestScore := -1, 0.0
		for i, c := range cs {
			if taken[i] || !s.allowed(c) {
				continue
			}
			v := c.base - s.scorer.runPenalty(c, s.selected)
			if best < 0 || v > bestScore {
				best, bestScore = i, v
			}
		}
		if best < 0 {
			return
		}
		taken[best] = true
		c := cs[best]
		s.selected = append(s.selected, c)
		s.final = append(s.final, bestScore)
		s.perDay[c.dateKey]++
		s.perType[c.typ]++
	}
}

func (s *selector) suggestions() []schedule.Suggestion {
	out := make([]schedule.Suggestion, 0, len(s.selected))
	for i, c := range s.selected {
		reasons := append([]string(nil), c.reasons...)
		if s.final[i] < c.base {
			reasons = append(reasons, reasonCloseSuggestion)
		}
		out = append(out, schedule.Suggestion{
			Title:     c.title,
			Type:      c.typ,
			StartTime: c.start,
			EndTime:   c.end,
			Priority:  schedule.ClampPriority(c.priority),
			Score:     clampScore(s.final[i]),
			Reasons:   reasons,
		})
	}
	return out
}
