package suggest

import (
	"time"

	"github.com/kalambet/cadence/internal/patterns"
	"github.com/kalambet/cadence/internal/schedule"
)

// Weights are the scoring constants. They are one consistent set; see
// DefaultWeights for the values in production.
type Weights struct {
	PatternBase float64
	DefaultBase float64

	FrequencyMultiplier  float64
	FrequencyCap         float64
	SuccessWeight        float64
	HighSuccessThreshold float64
	RecencyWeight        float64

	SpacingMax          float64
	MinSpacing          time.Duration
	IdealSpacingMin     time.Duration
	IdealSpacingMax     time.Duration
	IdealSpacingBonus   float64
	ClosePenalty        float64 // scaled by how far inside MinSpacing
	HighPriority        int
	HighPriorityPenalty float64
	SelectedPenalty     float64 // per already-selected suggestion within MinSpacing

	FatigueHighPriorityCap     int
	FatigueHighPriorityPenalty float64
	FatigueDailyCap            int
	FatigueDailyPenalty        float64
	FatigueSkipThreshold       float64

	NearTermWindow time.Duration
	NearTermBonus  float64
	PriorityBonus  float64
}

// DefaultWeights returns the production scoring constants.
func DefaultWeights() Weights {
	return Weights{
		PatternBase: 40,
		DefaultBase: 50,

		FrequencyMultiplier:  3,
		FrequencyCap:         20,
		SuccessWeight:        20,
		HighSuccessThreshold: 0.8,
		RecencyWeight:        10,

		SpacingMax:          10,
		MinSpacing:          2 * time.Hour,
		IdealSpacingMin:     4 * time.Hour,
		IdealSpacingMax:     6 * time.Hour,
		IdealSpacingBonus:   3,
		ClosePenalty:        15,
		HighPriority:        4,
		HighPriorityPenalty: 10,
		SelectedPenalty:     25,

		FatigueHighPriorityCap:     2,
		FatigueHighPriorityPenalty: 5,
		FatigueDailyCap:            4,
		FatigueDailyPenalty:        10,
		FatigueSkipThreshold:       15,

		NearTermWindow: 3 * 24 * time.Hour,
		NearTermBonus:  5,
		PriorityBonus:  5,
	}
}

// Config holds everything the Engine needs besides its collaborators.
type Config struct {
	DefaultLookAheadDays int
	MaxLookAheadDays     int
	HistoryDays          int

	MaxSuggestions int
	MaxPerDay      int
	MaxPerType     int
	MaxCandidates  int // hard cap on slots examined per request
	BusyThreshold  int // active sessions in the window that suppress default filler

	DefaultTypes    []schedule.SessionType
	DefaultDuration time.Duration
	DefaultPriority int

	Patterns patterns.Config
	Weights  Weights
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		DefaultLookAheadDays: 14,
		MaxLookAheadDays:     30,
		HistoryDays:          90,

		MaxSuggestions: 15,
		MaxPerDay:      2,
		MaxPerType:     3,
		MaxCandidates:  500,
		BusyThreshold:  10,

		DefaultTypes:    []schedule.SessionType{schedule.TypeDeepWork, schedule.TypeWorkout, schedule.TypeLanguage},
		DefaultDuration: 60 * time.Minute,
		DefaultPriority: 3,

		Patterns: patterns.DefaultConfig(),
		Weights:  DefaultWeights(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DefaultLookAheadDays <= 0 {
		c.DefaultLookAheadDays = def.DefaultLookAheadDays
	}
	if c.MaxLookAheadDays <= 0 {
		c.MaxLookAheadDays = def.MaxLookAheadDays
	}
	if c.HistoryDays <= 0 {
		c.HistoryDays = def.HistoryDays
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = def.MaxSuggestions
	}
	if c.MaxPerDay <= 0 {
		c.MaxPerDay = def.MaxPerDay
	}
	if c.MaxPerType <= 0 {
		c.MaxPerType = def.MaxPerType
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = def.MaxCandidates
	}
	if c.BusyThreshold <= 0 {
		c.BusyThreshold = def.BusyThreshold
	}
	if len(c.DefaultTypes) == 0 {
		c.DefaultTypes = def.DefaultTypes
	}
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = def.DefaultDuration
	}
	if c.DefaultPriority <= 0 {
		c.DefaultPriority = def.DefaultPriority
	}
	if c.Weights == (Weights{}) {
		c.Weights = def.Weights
	}
	return c
}
