package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/suggest"
	"github.com/kalambet/cadence/internal/timewindow"
)

// SuggestionsResponse is returned by GET /users/{id}/suggestions.
type SuggestionsResponse struct {
	Timezone    string                `json:"timezone"`
	Suggestions []schedule.Suggestion `json:"suggestions"`
}

// PatternsResponse is returned by GET /users/{id}/patterns.
type PatternsResponse struct {
	Timezone string             `json:"timezone"`
	Patterns []schedule.Pattern `json:"patterns"`
}

// ConflictRequest is the body of POST /users/{id}/conflicts.
type ConflictRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	ExcludeID string    `json:"exclude_id,omitempty"`
}

// ConflictResponse lists the active sessions overlapping the requested range.
type ConflictResponse struct {
	HasConflict bool               `json:"has_conflict"`
	Conflicts   []schedule.Session `json:"conflicts"`
}

// BatchConflictRequest is the body of POST /users/{id}/conflicts/batch.
type BatchConflictRequest struct {
	Ranges []schedule.TimeRange `json:"ranges"`
}

// BatchConflictResult reports one input range. Checked is false when the
// range could not be checked; such a range must not be treated as free.
type BatchConflictResult struct {
	Index     int                `json:"index"`
	Checked   bool               `json:"checked"`
	Conflicts []schedule.Session `json:"conflicts"`
}

// parseSuggestOptions reads Options from the query string. start_date takes
// RFC 3339 or a YYYY-MM-DD date, the latter meaning local midnight in loc.
func parseSuggestOptions(r *http.Request, loc *time.Location) (suggest.Options, error) {
	const op = "suggest options"
	var opts suggest.Options
	var err error
	q := r.URL.Query()

	if opts.LookAheadDays, err = queryPositiveInt(r, "look_ahead_days"); err != nil {
		return opts, err
	}
	if opts.MinPriority, err = queryPositiveInt(r, "min_priority"); err != nil {
		return opts, err
	}
	if opts.MaxPriority, err = queryPositiveInt(r, "max_priority"); err != nil {
		return opts, err
	}
	if s := q.Get("start_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t, err = time.ParseInLocation(time.DateOnly, s, loc)
		}
		if err != nil {
			return opts, schedule.Validationf(op, "start_date must be RFC 3339 or YYYY-MM-DD")
		}
		t = t.UTC()
		opts.StartDate = &t
	}
	if s := q.Get("types"); s != "" {
		for _, name := range strings.Split(s, ",") {
			t, err := schedule.ParseSessionType(name)
			if err != nil {
				return opts, err
			}
			opts.PreferredTypes = append(opts.PreferredTypes, t)
		}
	}
	return opts, nil
}

func handleSuggestions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		tz, err := deps.Timezones.Resolve(r.Context(), userID, r.URL.Query().Get("timezone"))
		if err != nil {
			writeError(w, err)
			return
		}
		loc, err := timewindow.LoadLocation(tz)
		if err != nil {
			writeError(w, err)
			return
		}
		opts, err := parseSuggestOptions(r, loc)
		if err != nil {
			writeError(w, err)
			return
		}

		suggestions, err := deps.Engine.SuggestTimeSlots(r.Context(), userID, opts, tz)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SuggestionsResponse{Timezone: tz, Suggestions: suggestions})
	}
}

func handlePatterns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		tz, err := deps.Timezones.Resolve(r.Context(), userID, r.URL.Query().Get("timezone"))
		if err != nil {
			writeError(w, err)
			return
		}
		ps, err := deps.Engine.PatternsFor(r.Context(), userID, tz)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PatternsResponse{Timezone: tz, Patterns: ps})
	}
}

func handleConflicts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ConflictRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		found, err := deps.Engine.CheckConflicts(r.Context(), chi.URLParam(r, "userID"), req.StartTime, req.EndTime, req.ExcludeID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ConflictResponse{HasConflict: len(found) > 0, Conflicts: found})
	}
}

func handleConflictsBatch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BatchConflictRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		found, err := deps.Engine.CheckConflictsBatch(r.Context(), chi.URLParam(r, "userID"), req.Ranges)
		if err != nil {
			writeError(w, err)
			return
		}

		results := make([]BatchConflictResult, len(req.Ranges))
		for i := range req.Ranges {
			conflicts, ok := found[i]
			if conflicts == nil {
				conflicts = []schedule.Session{}
			}
			results[i] = BatchConflictResult{Index: i, Checked: ok, Conflicts: conflicts}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}
