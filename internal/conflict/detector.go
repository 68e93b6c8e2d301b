// Package conflict finds active sessions that overlap candidate intervals.
package conflict

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/timewindow"
)

// SessionFinder is the read side of the session store used for conflict
// queries. Implemented by storage.Store.
type SessionFinder interface {
	// ActiveSessionsInRange returns the user's non-deleted, non-completed
	// sessions overlapping [start, end).
	ActiveSessionsInRange(ctx context.Context, userID string, start, end time.Time) ([]schedule.Session, error)
}

const (
	defaultChunkSize   = 8
	defaultMaxSpan     = 48 * time.Hour
	defaultConcurrency = 4
)

// Detector answers conflict queries against a SessionFinder.
type Detector struct {
	store       SessionFinder
	chunkSize   int
	maxSpan     time.Duration
	concurrency int
	logger      *slog.Logger
}

// NewDetector creates a Detector with default batching parameters.
func NewDetector(store SessionFinder) *Detector {
	return &Detector{
		store:       store,
		chunkSize:   defaultChunkSize,
		maxSpan:     defaultMaxSpan,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
}

// Check returns the active sessions of userID overlapping [start, end),
// ignoring the session excludeID (pass "" to exclude nothing).
func (d *Detector) Check(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]schedule.Session, error) {
	r := schedule.TimeRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	found, err := d.store.ActiveSessionsInRange(ctx, userID, start, end)
	if err != nil {
		return nil, schedule.E(schedule.KindTransient, "check conflicts", err)
	}
	return overlapping(found, r, excludeID), nil
}

// CheckBatch checks many ranges with one store read per chunk of nearby
// ranges, reading chunks concurrently. The result is keyed by input index and
// every successfully checked index is present, with an empty slice when clear.
// Indices whose chunk read failed are absent: their conflict state is unknown
// and callers must not treat them as free. Only cancellation fails the batch.
func (d *Detector) CheckBatch(ctx context.Context, userID string, ranges []schedule.TimeRange) (map[int][]schedule.Session, error) {
	for i, r := range ranges {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("range %d: %w", i, err)
		}
	}
	if len(ranges) == 0 {
		return map[int][]schedule.Session{}, nil
	}

	chunks := d.chunk(ranges)
	perIndex := make([][]schedule.Session, len(ranges))
	checked := make([]bool, len(ranges))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, ch := range chunks {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			found, err := d.store.ActiveSessionsInRange(ctx, userID, ch.span.Start, ch.span.End)
			if err != nil {
				d.logger.Warn("conflict check failed, dropping candidates",
					"user_id", userID, "candidates", len(ch.indices), "error", err)
				return nil
			}
			for _, i := range ch.indices {
				perIndex[i] = overlapping(found, ranges[i], "")
				checked[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[int][]schedule.Session, len(ranges))
	for i := range ranges {
		if checked[i] {
			out[i] = perIndex[i]
		}
	}
	return out, nil
}

type chunk struct {
	indices []int
	span    schedule.TimeRange
}

// chunk groups ranges ordered by start so that each group spans at most
// maxSpan and holds at most chunkSize ranges.
func (d *Detector) chunk(ranges []schedule.TimeRange) []chunk {
	order := make([]int, len(ranges))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ranges[order[a]].Start.Before(ranges[order[b]].Start)
	})

	var out []chunk
	var cur *chunk
	for _, i := range order {
		r := ranges[i]
		if cur != nil && len(cur.indices) < d.chunkSize && r.End.Sub(cur.span.Start) <= d.maxSpan {
			cur.indices = append(cur.indices, i)
			if r.End.After(cur.span.End) {
				cur.span.End = r.End
			}
			continue
		}
		out = append(out, chunk{indices: []int{i}, span: r})
		cur = &out[len(out)-1]
	}
	return out
}

func overlapping(sessions []schedule.Session, r schedule.TimeRange, excludeID string) []schedule.Session {
	out := []schedule.Session{}
	for _, s := range sessions {
		if !s.Active() || (excludeID != "" && s.ID == excludeID) {
			continue
		}
		if timewindow.Overlaps(s.StartTime, s.EndTime, r.Start, r.End) {
			out = append(out, s)
		}
	}
	return out
}
