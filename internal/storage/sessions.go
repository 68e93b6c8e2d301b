package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/cadence/internal/schedule"
)

const sessionColumns = `id, user_id, type, title, start_time, end_time, priority, completed, deleted_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanSession(row rowScanner) (schedule.Session, error) {
	var (
		sess             schedule.Session
		typ, start, end  string
		created, updated string
		completed        int
		deletedAt        sql.NullString
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &typ, &sess.Title, &start, &end, &sess.Priority, &completed, &deletedAt, &created, &updated); err != nil {
		return schedule.Session{}, err
	}
	sess.Type = schedule.SessionType(typ)
	sess.Completed = completed != 0

	var err error
	if sess.StartTime, err = parseTime("start_time", start); err != nil {
		return schedule.Session{}, err
	}
	if sess.EndTime, err = parseTime("end_time", end); err != nil {
		return schedule.Session{}, err
	}
	if sess.CreatedAt, err = parseTime("created_at", created); err != nil {
		return schedule.Session{}, err
	}
	if sess.UpdatedAt, err = parseTime("updated_at", updated); err != nil {
		return schedule.Session{}, err
	}
	if deletedAt.Valid {
		t, err := parseTime("deleted_at", deletedAt.String)
		if err != nil {
			return schedule.Session{}, err
		}
		sess.DeletedAt = &t
	}
	return sess, nil
}

func collectSessions(rows *sql.Rows) ([]schedule.Session, error) {
	defer rows.Close()
	out := []schedule.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// normalize validates s and truncates its instants to the stored precision.
func normalize(op string, s schedule.Session) (schedule.Session, error) {
	if strings.TrimSpace(s.UserID) == "" {
		return s, schedule.Validationf(op, "user_id is required")
	}
	s.StartTime = s.StartTime.UTC().Truncate(time.Second)
	s.EndTime = s.EndTime.UTC().Truncate(time.Second)
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// overlapping returns the user's active sessions overlapping [start, end)
// other than excludeID.
func overlapping(ctx context.Context, q querier, userID string, start, end time.Time, excludeID string) ([]schedule.Session, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND deleted_at IS NULL AND completed = 0
		  AND start_time < ? AND end_time > ? AND id != ?
		ORDER BY start_time ASC, id ASC`,
		userID, formatTime(ceilSecond(end)), formatTime(start), excludeID,
	)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func conflictError(op string, found []schedule.Session) error {
	ids := make([]string, len(found))
	for i, s := range found {
		ids[i] = s.ID
	}
	return schedule.E(schedule.KindConflict, op, fmt.Errorf("overlaps active session(s) %s", strings.Join(ids, ", ")))
}

// CreateSession stores a new session. Unless force is set, a session that
// overlaps one of the user's active sessions is rejected with a conflict
// error, as is an ID that is already taken. A missing ID is generated.
func (s *Store) CreateSession(ctx context.Context, sess schedule.Session, force bool) (schedule.Session, error) {
	const op = "create session"
	sess, err := normalize(op, sess)
	if err != nil {
		return schedule.Session{}, err
	}
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	now := s.timestamp()
	sess.CreatedAt, sess.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schedule.Session{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, sess.ID).Scan(&exists); err != nil {
		return schedule.Session{}, fmt.Errorf("checking session id: %w", err)
	}
	if exists > 0 {
		return schedule.Session{}, schedule.E(schedule.KindConflict, op, fmt.Errorf("session %s already exists", sess.ID))
	}

	if !force && !sess.Completed {
		found, err := overlapping(ctx, tx, sess.UserID, sess.StartTime, sess.EndTime, "")
		if err != nil {
			return schedule.Session{}, fmt.Errorf("checking conflicts: %w", err)
		}
		if len(found) > 0 {
			return schedule.Session{}, conflictError(op, found)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		sess.ID, sess.UserID, string(sess.Type), sess.Title,
		formatTime(sess.StartTime), formatTime(sess.EndTime), sess.Priority, boolInt(sess.Completed),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return schedule.Session{}, fmt.Errorf("inserting session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return schedule.Session{}, fmt.Errorf("committing session: %w", err)
	}
	sess.DeletedAt = nil
	return sess, nil
}

// GetSession returns one of the user's sessions, including soft-deleted ones.
func (s *Store) GetSession(ctx context.Context, userID, id string) (schedule.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ? AND user_id = ?`, id, userID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Session{}, ErrNotFound
	}
	if err != nil {
		return schedule.Session{}, err
	}
	return sess, nil
}

// UpdateSession replaces the editable fields of an existing, non-deleted
// session. Conflicts are checked as in CreateSession, ignoring the session
// itself.
func (s *Store) UpdateSession(ctx context.Context, sess schedule.Session, force bool) (schedule.Session, error) {
	const op = "update session"
	sess, err := normalize(op, sess)
	if err != nil {
		return schedule.Session{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schedule.Session{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, sess.ID, sess.UserID))
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Session{}, ErrNotFound
	}
	if err != nil {
		return schedule.Session{}, err
	}

	if !force && !sess.Completed {
		found, err := overlapping(ctx, tx, sess.UserID, sess.StartTime, sess.EndTime, sess.ID)
		if err != nil {
			return schedule.Session{}, fmt.Errorf("checking conflicts: %w", err)
		}
		if len(found) > 0 {
			return schedule.Session{}, conflictError(op, found)
		}
	}

	now := s.timestamp()
	_, err = tx.ExecContext(ctx, `UPDATE sessions
		SET type = ?, title = ?, start_time = ?, end_time = ?, priority = ?, completed = ?, updated_at = ?
		WHERE id = ?`,
		string(sess.Type), sess.Title, formatTime(sess.StartTime), formatTime(sess.EndTime),
		sess.Priority, boolInt(sess.Completed), formatTime(now), sess.ID,
	)
	if err != nil {
		return schedule.Session{}, fmt.Errorf("updating session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return schedule.Session{}, fmt.Errorf("committing session: %w", err)
	}
	sess.CreatedAt = current.CreatedAt
	sess.UpdatedAt = now
	sess.DeletedAt = nil
	return sess, nil
}

// CompleteSession marks a non-deleted session completed.
func (s *Store) CompleteSession(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET completed = 1, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		formatTime(s.timestamp()), id, userID)
	return affectedOne(res, err)
}

// DeleteSession soft-deletes a session. Deleting twice is NotFound.
func (s *Store) DeleteSession(ctx context.Context, userID, id string) error {
	now := formatTime(s.timestamp())
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		now, now, id, userID)
	return affectedOne(res, err)
}

// SessionHistory returns the user's non-deleted sessions starting in
// [since, until), completed or not, in chronological order.
func (s *Store) SessionHistory(ctx context.Context, userID string, since, until time.Time) ([]schedule.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND deleted_at IS NULL AND start_time >= ? AND start_time < ?
		ORDER BY start_time ASC, id ASC`,
		userID, formatTime(ceilSecond(since)), formatTime(ceilSecond(until)),
	)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ActiveSessionsInRange returns the user's non-deleted, non-completed
// sessions overlapping [start, end).
func (s *Store) ActiveSessionsInRange(ctx context.Context, userID string, start, end time.Time) ([]schedule.Session, error) {
	return overlapping(ctx, s.db, userID, start, end, "")
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
