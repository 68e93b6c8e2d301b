// Package ingest imports schedule history from YAML documents through the
// SQLite job queue.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/storage"
)

// JobType is the queue type handled by Worker.
const JobType = "import_schedule"

// maxReportedErrors caps the per-session error list stored in a job result.
const maxReportedErrors = 20

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id, resultJSON string) error
	FailJob(ctx context.Context, id string, errMsg string) error
}

// ScheduleWriter persists imported sessions and availability.
type ScheduleWriter interface {
	CreateSession(ctx context.Context, s schedule.Session, force bool) (schedule.Session, error)
	PutAvailability(ctx context.Context, userID string, wa schedule.WeeklyAvailability) error
}

// TimezoneSetter stores a user's timezone. Implemented by identity.Resolver
// so the cached value is refreshed too.
type TimezoneSetter interface {
	Set(ctx context.Context, userID, timezone string) error
}

// Payload is the JSON body of an import job.
type Payload struct {
	UserID   string `json:"user_id"`
	Document string `json:"document"`
}

// Result summarises a finished import.
type Result struct {
	Imported         int      `json:"imported"`
	SkippedConflicts int      `json:"skipped_conflicts"`
	Rejected         int      `json:"rejected"`
	Availability     bool     `json:"availability_updated"`
	Timezone         string   `json:"timezone,omitempty"`
	Errors           []string `json:"errors,omitempty"`
}

// NewJob validates document and builds an import job for userID.
func NewJob(userID string, document []byte) (storage.Job, error) {
	if userID == "" {
		return storage.Job{}, schedule.Validationf("import", "user_id is required")
	}
	if _, err := ParseDocument(document); err != nil {
		return storage.Job{}, err
	}
	payload, err := json.Marshal(Payload{UserID: userID, Document: string(document)})
	if err != nil {
		return storage.Job{}, fmt.Errorf("encoding payload: %w", err)
	}
	return storage.Job{
		ID:          uuid.New().String(),
		Type:        JobType,
		PayloadJSON: string(payload),
	}, nil
}

// Worker processes import jobs from the SQLite job queue.
type Worker struct {
	jobs     JobStore
	writer   ScheduleWriter
	timezone TimezoneSetter
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(jobs JobStore, writer ScheduleWriter, timezone TimezoneSetter, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		jobs:     jobs,
		writer:   writer,
		timezone: timezone,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single import job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimNextJob(ctx, []string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	res, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("import job failed", "job_id", job.ID, "error", err)
		if failErr := w.jobs.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	out, err := json.Marshal(res)
	if err != nil {
		return true, fmt.Errorf("encoding result for job %s: %w", job.ID, err)
	}
	if err := w.jobs.CompleteJob(ctx, job.ID, string(out)); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Info("import completed", "job_id", job.ID,
		"imported", res.Imported, "skipped_conflicts", res.SkippedConflicts, "rejected", res.Rejected)
	return true, nil
}

// processJob applies a document. Per-session validation errors and
// conflicts are recorded in the result; store failures fail the job so it is
// retried. Sessions without an ID get one derived from the job, so a retry
// reports rows it already wrote as conflicts instead of duplicating them.
func (w *Worker) processJob(ctx context.Context, job *storage.Job) (Result, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return Result{}, fmt.Errorf("parsing payload: %w", err)
	}
	doc, err := ParseDocument([]byte(payload.Document))
	if err != nil {
		return Result{}, err
	}

	var res Result
	if doc.Timezone != "" {
		if err := w.timezone.Set(ctx, payload.UserID, doc.Timezone); err != nil {
			return Result{}, fmt.Errorf("setting timezone: %w", err)
		}
		res.Timezone = doc.Timezone
	}
	if wa, _ := doc.weekly(); wa != nil {
		if err := w.writer.PutAvailability(ctx, payload.UserID, wa); err != nil {
			return Result{}, fmt.Errorf("storing availability: %w", err)
		}
		res.Availability = true
	}

	for i, rec := range doc.Sessions {
		if rec.ID == "" {
			rec.ID = uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s/%s/%d", job.ID, payload.UserID, i)).String()
		}
		s, err := rec.session(payload.UserID)
		if err != nil {
			res.Rejected++
			res.addError(err)
			continue
		}
		_, err = w.writer.CreateSession(ctx, s, false)
		switch schedule.KindOf(err) {
		case schedule.KindUnknown:
			if err != nil {
				return Result{}, fmt.Errorf("storing session %d: %w", i, err)
			}
			res.Imported++
		case schedule.KindConflict:
			res.SkippedConflicts++
			res.addError(err)
		case schedule.KindValidation:
			res.Rejected++
			res.addError(err)
		default:
			return Result{}, fmt.Errorf("storing session %d: %w", i, err)
		}
	}
	return res, nil
}

func (r *Result) addError(err error) {
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, err.Error())
	}
}
