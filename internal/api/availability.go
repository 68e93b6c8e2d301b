package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/cadence/internal/schedule"
)

func handleGetAvailability(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wa, err := deps.Store.GetAvailability(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wa)
	}
}

// handlePutAvailability replaces the user's weekly windows. The body maps
// day names to windows: {"MONDAY": [{"start_time": "07:00", "end_time": "09:00"}]}.
func handlePutAvailability(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var wa schedule.WeeklyAvailability
		if err := decodeBody(w, r, &wa); err != nil {
			writeError(w, err)
			return
		}
		userID := chi.URLParam(r, "userID")
		if err := deps.Store.PutAvailability(r.Context(), userID, wa); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, wa)
	}
}

type timezoneBody struct {
	Timezone string `json:"timezone"`
}

func handleGetTimezone(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tz, err := deps.Timezones.Get(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, timezoneBody{Timezone: tz})
	}
}

func handlePutTimezone(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body timezoneBody
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, err)
			return
		}
		if err := deps.Timezones.Set(r.Context(), chi.URLParam(r, "userID"), body.Timezone); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}
