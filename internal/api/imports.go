package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/cadence/internal/ingest"
	"github.com/kalambet/cadence/internal/storage"
)

const maxImportBodySize = 10 << 20 // 10MB

// ImportRequest queues a YAML schedule document for userID.
type ImportRequest struct {
	UserID   string `json:"user_id"`
	Document string `json:"document"`
}

// JobResponse is a job's status with its decoded result, if any.
type JobResponse struct {
	storage.Job
	Result json.RawMessage `json:"result,omitempty"`
}

func handleImport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		defer r.Body.Close()

		var req ImportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		job, err := ingest.NewJob(req.UserID, []byte(req.Document))
		if err != nil {
			writeError(w, err)
			return
		}
		if err := deps.Store.EnqueueJob(r.Context(), job); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     job.ID,
			"status": "queued",
		})
	}
}

func handleGetJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := deps.Store.GetJob(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			writeError(w, err)
			return
		}
		resp := JobResponse{Job: job}
		if job.ResultJSON != "" {
			resp.Result = json.RawMessage(job.ResultJSON)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
