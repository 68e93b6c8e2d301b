package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/cadence/internal/schedule"
)

// defaultListSpan is how far either side of now GET /sessions looks without
// explicit bounds.
const defaultListSpan = 30 * 24 * time.Hour

// SessionRequest is the body of POST and PATCH on sessions. On PATCH only
// the fields present are applied.
type SessionRequest struct {
	ID        string     `json:"id,omitempty"`
	Type      *string    `json:"type,omitempty"`
	Title     *string    `json:"title,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Priority  *int       `json:"priority,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
}

// apply copies the present fields of req onto s.
func (req SessionRequest) apply(s schedule.Session) (schedule.Session, error) {
	if req.Type != nil {
		t, err := schedule.ParseSessionType(*req.Type)
		if err != nil {
			return s, err
		}
		s.Type = t
	}
	if req.Title != nil {
		s.Title = strings.TrimSpace(*req.Title)
	}
	if req.StartTime != nil {
		s.StartTime = req.StartTime.UTC()
	}
	if req.EndTime != nil {
		s.EndTime = req.EndTime.UTC()
	}
	if req.Priority != nil {
		s.Priority = *req.Priority
	}
	if req.Completed != nil {
		s.Completed = *req.Completed
	}
	return s, nil
}

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		from, err := queryTime(r, "from", now.Add(-defaultListSpan))
		if err != nil {
			writeError(w, err)
			return
		}
		to, err := queryTime(r, "to", now.Add(defaultListSpan))
		if err != nil {
			writeError(w, err)
			return
		}
		if !to.After(from) {
			writeError(w, schedule.Validationf("list sessions", "to must be after from"))
			return
		}

		sessions, err := deps.Store.SessionHistory(r.Context(), chi.URLParam(r, "userID"), from, to)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SessionRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Type == nil {
			writeError(w, schedule.Validationf("create session", "type is required"))
			return
		}

		s, err := req.apply(schedule.Session{
			ID:       req.ID,
			UserID:   chi.URLParam(r, "userID"),
			Priority: 3,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		if s.Title == "" {
			s.Title = s.Type.Label()
		}

		created, err := deps.Store.CreateSession(r.Context(), s, queryBool(r, "force"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Store.GetSession(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleUpdateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SessionRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		current, err := deps.Store.GetSession(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if current.DeletedAt != nil {
			httpError(w, http.StatusNotFound, "not_found", "session %s is deleted", current.ID)
			return
		}
		updated, err := req.apply(current)
		if err != nil {
			writeError(w, err)
			return
		}

		saved, err := deps.Store.UpdateSession(r.Context(), updated, queryBool(r, "force"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func handleDeleteSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteSession(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleCompleteSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.CompleteSession(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
	}
}
