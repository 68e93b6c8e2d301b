package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/timewindow"
)

// Document is the YAML import format. Every section is optional.
//
//	timezone: Europe/Berlin
//	availability:
//	  MONDAY:
//	    - {start_time: "07:00", end_time: "09:00"}
//	sessions:
//	  - type: DEEP_WORK
//	    title: Morning focus
//	    start_time: 2026-04-20T07:00:00Z
//	    end_time: 2026-04-20T08:00:00Z
//	    priority: 4
//	    completed: true
type Document struct {
	Timezone     string                                   `yaml:"timezone"`
	Availability map[string][]schedule.AvailabilityWindow `yaml:"availability"`
	Sessions     []SessionRecord                          `yaml:"sessions"`
}

// SessionRecord is one imported session.
type SessionRecord struct {
	ID        string    `yaml:"id"`
	Type      string    `yaml:"type"`
	Title     string    `yaml:"title"`
	StartTime time.Time `yaml:"start_time"`
	EndTime   time.Time `yaml:"end_time"`
	Priority  int       `yaml:"priority"`
	Completed bool      `yaml:"completed"`
}

// ParseDocument decodes and checks a YAML import document. Unknown fields
// are rejected so typos do not silently drop data.
func ParseDocument(data []byte) (Document, error) {
	const op = "parse import"
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, schedule.Validationf(op, "document is empty")
		}
		return Document{}, schedule.E(schedule.KindValidation, op, err)
	}

	if doc.Timezone != "" {
		if _, err := timewindow.LoadLocation(doc.Timezone); err != nil {
			return Document{}, err
		}
	}
	if _, err := doc.weekly(); err != nil {
		return Document{}, err
	}
	if doc.Timezone == "" && len(doc.Availability) == 0 && len(doc.Sessions) == 0 {
		return Document{}, schedule.Validationf(op, "document has nothing to import")
	}
	return doc, nil
}

func (d Document) weekly() (schedule.WeeklyAvailability, error) {
	if len(d.Availability) == 0 {
		return nil, nil
	}
	wa, err := schedule.WeeklyFromNames(d.Availability)
	if err != nil {
		return nil, err
	}
	if err := wa.Validate(); err != nil {
		return nil, err
	}
	return wa, nil
}

// session converts r into a Session owned by userID.
func (r SessionRecord) session(userID string) (schedule.Session, error) {
	typ, err := schedule.ParseSessionType(r.Type)
	if err != nil {
		return schedule.Session{}, err
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = typ.Label()
	}
	priority := r.Priority
	if priority == 0 {
		priority = 3
	}
	s := schedule.Session{
		ID:        r.ID,
		UserID:    userID,
		Type:      typ,
		Title:     title,
		StartTime: r.StartTime.UTC(),
		EndTime:   r.EndTime.UTC(),
		Priority:  priority,
		Completed: r.Completed,
	}
	if err := s.Validate(); err != nil {
		return schedule.Session{}, fmt.Errorf("session %q at %s: %w", title, r.StartTime.Format(time.RFC3339), err)
	}
	return s, nil
}
