package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kalambet/cadence/internal/schedule"
)

const maxRequestBodySize = 1 << 20 // 1MB

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

// writeError maps a tagged error to its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	switch schedule.KindOf(err) {
	case schedule.KindValidation:
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case schedule.KindNotFound:
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case schedule.KindConflict:
		httpError(w, http.StatusConflict, "conflict", "%v", err)
	case schedule.KindTransient:
		httpError(w, http.StatusServiceUnavailable, "unavailable", "%v", err)
	default:
		slog.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return schedule.Validationf("decode request", "invalid request body: %v", err)
	}
	return nil
}

// queryPositiveInt parses an optional positive integer. An absent key yields
// 0; an explicit value below 1 is rejected.
func queryPositiveInt(r *http.Request, key string) (int, error) {
	q := r.URL.Query()
	if !q.Has(key) {
		return 0, nil
	}
	v, err := strconv.Atoi(q.Get(key))
	if err != nil {
		return 0, schedule.Validationf("parse query", "%s must be an integer", key)
	}
	if v < 1 {
		return 0, schedule.Validationf("parse query", "%s must be positive", key)
	}
	return v, nil
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// queryTime parses an RFC 3339 instant, returning def when the key is absent.
func queryTime(r *http.Request, key string, def time.Time) (time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, schedule.Validationf("parse query", "%s must be an RFC 3339 timestamp", key)
	}
	return t.UTC(), nil
}
