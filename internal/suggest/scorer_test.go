package suggest

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/kalambet/cadence/internal/schedule"
)

var scoreNow = time.Date(2026, 5, 6, 12, 0, 0, 0, time.UTC)

func TestScore_PatternComponents(t *testing.T) {
	s := NewScorer(DefaultWeights(), scoreNow)
	start := time.Date(2026, 5, 18, 7, 0, 0, 0, time.UTC)
	c := candidate{
		typ: schedule.TypeDeepWork, title: "Focus", start: start, end: start.Add(time.Hour), priority: 3,
		pattern: &schedule.Pattern{
			Type: schedule.TypeDeepWork, DayOfWeek: time.Monday, Hour: 7, Priority: 3,
			Frequency: 5, SuccessRate: 0.9, RecencyWeight: 0.6,
		},
	}

	got := s.score(c, newSnapshot(nil, time.UTC))

	// 40 base + 15 frequency + 18 success + 6 recency + 10 spacing
	if got.base != 89 {
		t.Errorf("base = %v, want 89", got.base)
	}
	want := []string{"done 5 times on Mondays around 07:00", "high completion rate (90%)", reasonRecent}
	if !reflect.DeepEqual(got.reasons, want) {
		t.Errorf("reasons = %q, want %q", got.reasons, want)
	}
}

func TestScore_FrequencyBonusCapped(t *testing.T) {
	s := NewScorer(DefaultWeights(), scoreNow)
	start := time.Date(2026, 5, 18, 7, 0, 0, 0, time.UTC)
	c := candidate{
		typ: schedule.TypeWorkout, start: start, end: start.Add(time.Hour), priority: 3,
		pattern: &schedule.Pattern{DayOfWeek: time.Monday, Hour: 7, Frequency: 30},
	}

	got := s.score(c, newSnapshot(nil, time.UTC))
	if got.base != 40+20+10 {
		t.Errorf("base = %v, want 70", got.base)
	}
}

func TestScore_DefaultNearTerm(t *testing.T) {
	s := NewScorer(DefaultWeights(), scoreNow)
	start := scoreNow.Add(24 * time.Hour)
	c := candidate{typ: schedule.TypeLanguage, start: start, end: start.Add(time.Hour), priority: 3}

	got := s.score(c, newSnapshot(nil, time.UTC))
	if got.base != 50+10+5 {
		t.Errorf("base = %v, want 65", got.base)
	}
	want := []string{reasonDefault, reasonSoon}
	if !reflect.DeepEqual(got.reasons, want) {
		t.Errorf("reasons = %q, want %q", got.reasons, want)
	}
}

func TestSpacing(t *testing.T) {
	s := NewScorer(DefaultWeights(), scoreNow)
	start := time.Date(2026, 5, 18, 12, 0, 0, 0, time.UTC)
	c := candidate{start: start, end: start.Add(time.Hour), priority: 4}

	tests := []struct {
		name    string
		day     []schedule.Session
		want    float64
		reasons []string
	}{
		{
			name: "empty day",
			want: 10,
		},
		{
			name:    "one hour gap, both high priority",
			day:     []schedule.Session{sess("a", schedule.TypeStudy, start.Add(-2*time.Hour), 60, 4, false)},
			want:    10 - 7.5 - 10,
			reasons: []string{reasonCloseSession, reasonBackToBack},
		},
		{
			name:    "one hour gap, low priority neighbour",
			day:     []schedule.Session{sess("a", schedule.TypeStudy, start.Add(2*time.Hour), 60, 2, false)},
			want:    10 - 7.5,
			reasons: []string{reasonCloseSession},
		},
		{
			name:    "five hour gap",
			day:     []schedule.Session{sess("a", schedule.TypeStudy, start.Add(6*time.Hour), 60, 2, false)},
			want:    13,
			reasons: []string{reasonWellSpaced},
		},
		{
			name: "three hour gap",
			day:  []schedule.Session{sess("a", schedule.TypeStudy, start.Add(4*time.Hour), 60, 2, false)},
			want: 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reasons := s.spacing(c, tt.day)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("spacing = %v, want %v", got, tt.want)
			}
			if !reflect.DeepEqual(reasons, tt.reasons) {
				t.Errorf("reasons = %q, want %q", reasons, tt.reasons)
			}
		})
	}
}

func TestFatigue(t *testing.T) {
	s := NewScorer(DefaultWeights(), scoreNow)
	base := time.Date(2026, 5, 18, 6, 0, 0, 0, time.UTC)
	var day []schedule.Session
	for i := 0; i < 4; i++ {
		day = append(day, sess("s", schedule.TypeStudy, base.Add(time.Duration(i)*3*time.Hour), 60, 4, false))
	}

	penalty, reasons := s.fatigue(day, true)
	// five high-priority sessions including the candidate: 3 over the cap
	if penalty != 3*5+10 {
		t.Errorf("penalty = %v, want 25", penalty)
	}
	if !reflect.DeepEqual(reasons, []string{reasonHighPriorityDay, reasonBusyDay}) {
		t.Errorf("reasons = %q", reasons)
	}

	if penalty, _ := s.fatigue(day[:2], false); penalty != 0 {
		t.Errorf("two high-priority sessions: penalty = %v, want 0", penalty)
	}
}

func TestRunPenalty(t *testing.T) {
	s := NewScorer(DefaultWeights(), scoreNow)
	snap := newSnapshot(nil, time.UTC)
	mk := func(start time.Time) scored {
		return scored{candidate: candidate{start: start, end: start.Add(time.Hour)}, dateKey: snap.dateKey(start)}
	}
	c := mk(time.Date(2026, 5, 18, 10, 0, 0, 0, time.UTC))

	selected := []scored{
		mk(time.Date(2026, 5, 18, 7, 30, 0, 0, time.UTC)), // 1h30 before
		mk(time.Date(2026, 5, 18, 15, 0, 0, 0, time.UTC)), // 4h after
		mk(time.Date(2026, 5, 19, 10, 0, 0, 0, time.UTC)), // other day
	}
	if got := s.runPenalty(c, selected); got != 25 {
		t.Errorf("runPenalty = %v, want 25", got)
	}
}

func TestClampScore(t *testing.T) {
	tests := map[float64]int{-3: 0, 0: 0, 54.5: 55, 99.6: 100, 140: 100}
	for in, want := range tests {
		if got := clampScore(in); got != want {
			t.Errorf("clampScore(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestSnapshot_IgnoresInactive(t *testing.T) {
	start := time.Date(2026, 5, 18, 7, 0, 0, 0, time.UTC)
	done := sess("done", schedule.TypeStudy, start, 60, 3, true)
	live := sess("live", schedule.TypeStudy, start.Add(2*time.Hour), 60, 3, false)

	snap := newSnapshot([]schedule.Session{done, live}, time.UTC)
	if n := snap.countOverlapping(start, start.Add(4*time.Hour)); n != 1 {
		t.Errorf("countOverlapping = %d, want 1", n)
	}
	if day := snap.day("2026-05-18"); len(day) != 1 || day[0].ID != "live" {
		t.Errorf("day = %v", day)
	}
}
