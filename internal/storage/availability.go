package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/timewindow"
)

// GetAvailability returns the user's weekly windows, sorted by start within
// each day. A user with nothing configured gets an empty map.
func (s *Store) GetAvailability(ctx context.Context, userID string) (schedule.WeeklyAvailability, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT day_of_week, start_time, end_time FROM availability
		WHERE user_id = ? ORDER BY day_of_week ASC, start_time ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := schedule.WeeklyAvailability{}
	for rows.Next() {
		var day int
		var start, end string
		if err := rows.Scan(&day, &start, &end); err != nil {
			return nil, err
		}
		var w schedule.AvailabilityWindow
		if w.Start, err = schedule.ParseTimeOfDay(start); err != nil {
			return nil, fmt.Errorf("parsing availability start: %w", err)
		}
		if w.End, err = schedule.ParseTimeOfDay(end); err != nil {
			return nil, fmt.Errorf("parsing availability end: %w", err)
		}
		wd := time.Weekday(day)
		out[wd] = append(out[wd], w)
	}
	return out, rows.Err()
}

// PutAvailability replaces the user's weekly windows. Windows are validated
// here so the engine can trust what it reads.
func (s *Store) PutAvailability(ctx context.Context, userID string, wa schedule.WeeklyAvailability) error {
	if strings.TrimSpace(userID) == "" {
		return schedule.Validationf("put availability", "user_id is required")
	}
	if err := wa.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing availability: %w", err)
	}
	for day, windows := range wa {
		for _, w := range windows {
			if _, err := tx.ExecContext(ctx, `INSERT INTO availability (user_id, day_of_week, start_time, end_time) VALUES (?, ?, ?, ?)`,
				userID, int(day), w.Start.String(), w.End.String()); err != nil {
				return fmt.Errorf("inserting availability: %w", err)
			}
		}
	}
	return tx.Commit()
}

// GetTimezone returns the user's stored IANA timezone or ErrNotFound.
func (s *Store) GetTimezone(ctx context.Context, userID string) (string, error) {
	var tz string
	err := s.db.QueryRowContext(ctx, `SELECT timezone FROM users WHERE id = ?`, userID).Scan(&tz)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return tz, err
}

// SetTimezone stores the user's timezone after checking it resolves.
func (s *Store) SetTimezone(ctx context.Context, userID, timezone string) error {
	if strings.TrimSpace(userID) == "" {
		return schedule.Validationf("set timezone", "user_id is required")
	}
	if _, err := timewindow.LoadLocation(timezone); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, timezone, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET timezone = excluded.timezone, updated_at = excluded.updated_at`,
		userID, timezone, formatTime(s.timestamp()),
	)
	return err
}
