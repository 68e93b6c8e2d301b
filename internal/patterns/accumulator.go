package patterns

import (
	"math"
	"time"

	"github.com/kalambet/cadence/internal/schedule"
)

type titleCount struct {
	title string
	n     int
}

// accumulator holds the running statistics of one cluster. Updates return a
// new value and never mutate the receiver.
type accumulator struct {
	typ    schedule.SessionType
	day    time.Weekday
	center int // minutes after local midnight

	frequency     int
	completed     int
	meanDuration  float64 // minutes
	meanPriority  float64
	recencyWeight float64 // mean of per-session weights
	titles        []titleCount
}

func newAccumulator(typ schedule.SessionType, day time.Weekday, center int) accumulator {
	return accumulator{typ: typ, day: day, center: center}
}

// incrementalMean folds x into a mean over n-1 previous values.
func incrementalMean(mean float64, n int, x float64) float64 {
	return mean + (x-mean)/float64(n)
}

// recencyWeight is 2^(-ageDays/halfLifeDays); future sessions weigh 1.
func recencyWeight(start, now time.Time, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 1
	}
	ageDays := now.Sub(start).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(2, -ageDays/halfLifeDays)
}

// add returns a with s folded in.
func (a accumulator) add(s schedule.Session, now time.Time, halfLifeDays float64) accumulator {
	next := a
	next.frequency++
	if s.Completed {
		next.completed++
	}
	next.meanDuration = incrementalMean(a.meanDuration, next.frequency, s.Duration().Minutes())
	next.meanPriority = incrementalMean(a.meanPriority, next.frequency, float64(s.Priority))
	next.recencyWeight = incrementalMean(a.recencyWeight, next.frequency, recencyWeight(s.StartTime, now, halfLifeDays))

	next.titles = make([]titleCount, len(a.titles), len(a.titles)+1)
	copy(next.titles, a.titles)
	found := false
	for i := range next.titles {
		if next.titles[i].title == s.Title {
			next.titles[i].n++
			found = true
			break
		}
	}
	if !found {
		next.titles = append(next.titles, titleCount{title: s.Title, n: 1})
	}
	return next
}

// topTitle returns the most frequent title; ties keep the first seen.
func (a accumulator) topTitle() string {
	best := titleCount{}
	for _, tc := range a.titles {
		if tc.n > best.n {
			best = tc
		}
	}
	if best.title == "" {
		return a.typ.Label()
	}
	return best.title
}

func (a accumulator) successRate() float64 {
	if a.frequency == 0 {
		return 0
	}
	return float64(a.completed) / float64(a.frequency)
}

func (a accumulator) pattern() schedule.Pattern {
	return schedule.Pattern{
		Type:            a.typ,
		DayOfWeek:       a.day,
		Hour:            a.center / 60,
		Minute:          a.center % 60,
		DurationMinutes: int(math.Round(a.meanDuration)),
		Priority:        schedule.ClampPriority(int(math.Round(a.meanPriority))),
		Frequency:       a.frequency,
		SuccessRate:     a.successRate(),
		RecencyWeight:   a.recencyWeight,
		Title:           a.topTitle(),
	}
}
