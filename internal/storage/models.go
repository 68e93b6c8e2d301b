package storage

import (
	"errors"
	"time"

	"github.com/kalambet/cadence/internal/schedule"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = schedule.E(schedule.KindNotFound, "storage", errors.New("not found"))

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

type Job struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	PayloadJSON string    `json:"-"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	RunAfter    time.Time `json:"run_after"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastError   string    `json:"last_error,omitempty"`
	ResultJSON  string    `json:"-"`
}
