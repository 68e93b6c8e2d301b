// Package suggest turns a user's history and weekly availability into a
// ranked list of future session slots.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/cadence/internal/availability"
	"github.com/kalambet/cadence/internal/conflict"
	"github.com/kalambet/cadence/internal/patterns"
	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/timewindow"
)

// Run modes reported to the Observer.
const (
	ModePattern = "pattern"
	ModeDefault = "default"
	ModeNone    = "none"
)

// SessionStore is the read side of the session store the engine needs.
// Implemented by storage.Store.
type SessionStore interface {
	conflict.SessionFinder
	// SessionHistory returns the user's non-deleted sessions starting in
	// [since, until), completed or not. Only completed ones feed detection.
	SessionHistory(ctx context.Context, userID string, since, until time.Time) ([]schedule.Session, error)
}

// AvailabilityStore returns a user's weekly availability. A user with none
// configured gets an empty map and no error.
type AvailabilityStore interface {
	GetAvailability(ctx context.Context, userID string) (schedule.WeeklyAvailability, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Observer receives per-run statistics. Implemented by metrics.Observer.
type Observer interface {
	ObserveRun(mode string, elapsed time.Duration, emitted int, err error)
	ObserveDropped(reason string, n int)
}

// Engine computes suggestions. It keeps no per-user state; every call works
// on a snapshot fetched at its start.
type Engine struct {
	sessions  SessionStore
	avail     AvailabilityStore
	conflicts *conflict.Detector
	patterns  *patterns.Detector
	cfg       Config
	clock     Clock
	observer  Observer
	logger    *slog.Logger
}

// NewEngine creates an Engine using the wall clock.
func NewEngine(sessions SessionStore, avail AvailabilityStore, cfg Config) *Engine {
	return NewEngineWithClock(sessions, avail, cfg, realClock{})
}

// NewEngineWithClock creates an Engine with a custom clock (for testing).
func NewEngineWithClock(sessions SessionStore, avail AvailabilityStore, cfg Config, clock Clock) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		sessions:  sessions,
		avail:     avail,
		conflicts: conflict.NewDetector(sessions),
		patterns:  patterns.NewDetector(cfg.Patterns),
		cfg:       cfg,
		clock:     clock,
		logger:    slog.Default(),
	}
}

// SetObserver installs o. A nil observer disables reporting.
func (e *Engine) SetObserver(o Observer) { e.observer = o }

// SuggestTimeSlots returns up to MaxSuggestions future slots for userID,
// best first. Invalid input fails with a validation error. A user without
// availability gets an empty list. A cancelled ctx yields ctx.Err() and no
// partial result.
func (e *Engine) SuggestTimeSlots(ctx context.Context, userID string, opts Options, timezone string) (result []schedule.Suggestion, err error) {
	started := time.Now()
	mode := ModeNone
	var drops map[string]int
	defer func() {
		if e.observer == nil {
			return
		}
		for reason, n := range drops {
			if n > 0 {
				e.observer.ObserveDropped(reason, n)
			}
		}
		e.observer.ObserveRun(mode, time.Since(started), len(result), err)
	}()

	const op = "suggest"
	if userID == "" {
		return nil, schedule.Validationf(op, "user id is required")
	}
	loc, err := timewindow.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now().UTC()
	opts, win, err := opts.resolve(now, e.cfg)
	if err != nil {
		return nil, err
	}

	avail, history, active, err := e.fetch(ctx, userID, now, win)
	if err != nil {
		return nil, err
	}
	if avail.Empty() {
		return []schedule.Suggestion{}, nil
	}

	checker := availability.NewChecker(avail, loc)
	snap := newSnapshot(active, loc)
	scorer := NewScorer(e.cfg.Weights, now)
	gen := newGenerator(e.cfg, opts, win, now, checker)
	drops = gen.drops
	sel := newSelector(e.cfg, scorer)

	var ps []schedule.Pattern
	for _, p := range e.patterns.Detect(history, loc, now) {
		if opts.allowsType(p.Type) && opts.allowsPriority(p.Priority) {
			ps = append(ps, p)
		}
	}

	if len(ps) > 0 {
		mode = ModePattern
		cands, err := e.dropConflicts(ctx, userID, gen, gen.fromPatterns(ps))
		if err != nil {
			return nil, err
		}
		sel.run(scoreAll(scorer, snap, cands))
	}

	if len(sel.selected) == 0 {
		if busy := snap.countOverlapping(win.start, win.end); busy >= e.cfg.BusyThreshold {
			e.logger.Debug("skipping default suggestions, schedule already full",
				"user_id", userID, "active_sessions", busy)
		} else {
			mode = ModeDefault
			cands, err := e.defaults(ctx, userID, opts, gen, snap, scorer)
			if err != nil {
				return nil, err
			}
			sel.run(scoreAll(scorer, snap, cands))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := sel.suggestions()
	e.logger.Debug("suggestions computed", "user_id", userID, "mode", mode,
		"examined", gen.examined, "emitted", len(out))
	return out, nil
}

// fetch loads the request snapshot. The three reads are independent and run
// concurrently.
func (e *Engine) fetch(ctx context.Context, userID string, now time.Time, win window) (schedule.WeeklyAvailability, []schedule.Session, []schedule.Session, error) {
	var (
		avail   schedule.WeeklyAvailability
		history []schedule.Session
		active  []schedule.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		avail, err = e.avail.GetAvailability(gctx, userID)
		if err != nil {
			return fmt.Errorf("loading availability: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		since := now.AddDate(0, 0, -e.cfg.HistoryDays)
		history, err = e.sessions.SessionHistory(gctx, userID, since, now)
		if err != nil {
			return fmt.Errorf("loading history: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		// Pad by a day so sessions on the window's edge dates count toward
		// spacing and fatigue.
		active, err = e.sessions.ActiveSessionsInRange(gctx, userID, win.start.Add(-24*time.Hour), win.end.Add(24*time.Hour))
		if err != nil {
			return fmt.Errorf("loading active sessions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, nil, nil, ctx.Err()
		}
		if schedule.KindOf(err) != schedule.KindUnknown {
			return nil, nil, nil, err
		}
		return nil, nil, nil, schedule.E(schedule.KindTransient, "suggest", err)
	}
	return avail, history, active, nil
}

// dropConflicts keeps only candidates confirmed free. Candidates whose check
// failed are dropped with the conflicting ones.
func (e *Engine) dropConflicts(ctx context.Context, userID string, gen *generator, cands []candidate) ([]candidate, error) {
	if len(cands) == 0 {
		return cands, nil
	}
	ranges := make([]schedule.TimeRange, len(cands))
	for i, c := range cands {
		ranges[i] = c.timeRange()
	}
	res, err := e.conflicts.CheckBatch(ctx, userID, ranges)
	if err != nil {
		return nil, err
	}
	out := cands[:0:0]
	for i, c := range cands {
		found, ok := res[i]
		switch {
		case !ok:
			gen.drops[dropUnchecked]++
		case len(found) > 0:
			gen.drops[dropConflict]++
		default:
			out = append(out, c)
		}
	}
	return out, nil
}

func (e *Engine) defaults(ctx context.Context, userID string, opts Options, gen *generator, snap *snapshot, scorer *Scorer) ([]candidate, error) {
	days := gen.defaultDays(snap, scorer)
	if len(days) == 0 {
		return nil, nil
	}
	ranges := make([]schedule.TimeRange, len(days))
	for i, d := range days {
		ranges[i] = schedule.TimeRange{Start: d.start, End: d.end}
	}
	res, err := e.conflicts.CheckBatch(ctx, userID, ranges)
	if err != nil {
		return nil, err
	}
	for i := range days {
		found, ok := res[i]
		if !ok {
			gen.drops[dropUnchecked]++
		} else if len(found) > 0 {
			gen.drops[dropConflict]++
		}
	}
	free := func(i int) bool {
		found, ok := res[i]
		return ok && len(found) == 0
	}

	types := e.cfg.DefaultTypes
	if len(opts.PreferredTypes) > 0 {
		types = opts.PreferredTypes
	}
	return gen.assignDefaults(types, days, free, e.cfg.Weights.MinSpacing), nil
}

func scoreAll(scorer *Scorer, snap *snapshot, cands []candidate) []scored {
	out := make([]scored, len(cands))
	for i, c := range cands {
		out[i] = scorer.score(c, snap)
	}
	sortScored(out)
	return out
}

// CheckConflicts returns the active sessions of userID overlapping
// [start, end), ignoring excludeID.
func (e *Engine) CheckConflicts(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]schedule.Session, error) {
	return e.conflicts.Check(ctx, userID, start, end, excludeID)
}

// CheckConflictsBatch checks every range and returns conflicts keyed by input
// index. Indices whose check failed are absent.
func (e *Engine) CheckConflictsBatch(ctx context.Context, userID string, ranges []schedule.TimeRange) (map[int][]schedule.Session, error) {
	return e.conflicts.CheckBatch(ctx, userID, ranges)
}

// DetectPatterns clusters sessions in timezone using the engine's tuning.
func (e *Engine) DetectPatterns(sessions []schedule.Session, timezone string) ([]schedule.Pattern, error) {
	loc, err := timewindow.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return e.patterns.Detect(sessions, loc, e.clock.Now().UTC()), nil
}

// PatternsFor loads the user's recent history and detects patterns in it.
func (e *Engine) PatternsFor(ctx context.Context, userID, timezone string) ([]schedule.Pattern, error) {
	loc, err := timewindow.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now().UTC()
	history, err := e.sessions.SessionHistory(ctx, userID, now.AddDate(0, 0, -e.cfg.HistoryDays), now)
	if err != nil {
		return nil, schedule.E(schedule.KindTransient, "detect patterns", err)
	}
	return e.patterns.Detect(history, loc, now), nil
}
