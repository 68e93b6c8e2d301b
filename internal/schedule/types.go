package schedule

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SessionType classifies a scheduled session.
type SessionType string

const (
	TypeDeepWork      SessionType = "DEEP_WORK"
	TypeWorkout       SessionType = "WORKOUT"
	TypeLanguage      SessionType = "LANGUAGE"
	TypeMeditation    SessionType = "MEDITATION"
	TypeClientMeeting SessionType = "CLIENT_MEETING"
	TypeStudy         SessionType = "STUDY"
	TypeReading       SessionType = "READING"
	TypeOther         SessionType = "OTHER"
)

// SessionTypes lists every known session type in display order.
var SessionTypes = []SessionType{
	TypeDeepWork, TypeWorkout, TypeLanguage, TypeMeditation,
	TypeClientMeeting, TypeStudy, TypeReading, TypeOther,
}

// Valid reports whether t is one of the known session types.
func (t SessionType) Valid() bool {
	for _, st := range SessionTypes {
		if st == t {
			return true
		}
	}
	return false
}

// ParseSessionType accepts the canonical form as well as lower case and
// dashed variants ("deep-work").
func ParseSessionType(s string) (SessionType, error) {
	t := SessionType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !t.Valid() {
		return "", Validationf("parse session type", "unknown session type %q", s)
	}
	return t, nil
}

// Label returns a human-readable name, e.g. "Deep Work".
func (t SessionType) Label() string {
	parts := strings.Split(strings.ToLower(string(t)), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

const (
	MinPriority = 1
	MaxPriority = 5
)

// ClampPriority forces p into [MinPriority, MaxPriority].
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// Session is a scheduled block of time owned by a user.
type Session struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Type      SessionType `json:"type"`
	Title     string      `json:"title"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
	Priority  int         `json:"priority"`
	Completed bool        `json:"completed"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Duration returns EndTime - StartTime.
func (s Session) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Active reports whether the session blocks its time slot: not soft-deleted
// and not yet completed.
func (s Session) Active() bool {
	return s.DeletedAt == nil && !s.Completed
}

// Validate checks the fields a caller controls.
func (s Session) Validate() error {
	if !s.Type.Valid() {
		return Validationf("validate session", "unknown session type %q", s.Type)
	}
	if strings.TrimSpace(s.Title) == "" {
		return Validationf("validate session", "title is required")
	}
	if !s.EndTime.After(s.StartTime) {
		return Validationf("validate session", "end_time must be after start_time")
	}
	if s.Priority < MinPriority || s.Priority > MaxPriority {
		return Validationf("validate session", "priority must be between %d and %d", MinPriority, MaxPriority)
	}
	return nil
}

// TimeRange is a half-open UTC interval [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate rejects empty or inverted ranges.
func (r TimeRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return Validationf("validate range", "start and end are required")
	}
	if !r.End.After(r.Start) {
		return Validationf("validate range", "end must be after start")
	}
	return nil
}

// TimeOfDay is a local wall-clock time expressed as minutes after midnight.
// 1440 represents end of day ("24:00") and is only meaningful as a range end.
type TimeOfDay int

const EndOfDay TimeOfDay = 24 * 60

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" (00:00 through 24:00).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, Validationf("parse time of day", "invalid time %q, want HH:MM", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, Validationf("parse time of day", "time %q out of range", s)
	}
	return NewTimeOfDay(h, m), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// AvailabilityWindow is a local time-of-day range [Start, End) on some day.
type AvailabilityWindow struct {
	Start TimeOfDay `json:"start_time" yaml:"start_time"`
	End   TimeOfDay `json:"end_time" yaml:"end_time"`
}

// Length returns the window size in minutes.
func (w AvailabilityWindow) Length() int {
	return int(w.End - w.Start)
}

// Contains reports full containment of [start, end).
func (w AvailabilityWindow) Contains(start, end TimeOfDay) bool {
	return w.Start <= start && end <= w.End
}

// WeeklyAvailability maps each day of the week to its ordered windows.
type WeeklyAvailability map[time.Weekday][]AvailabilityWindow

// Empty reports whether no day has any window.
func (wa WeeklyAvailability) Empty() bool {
	for _, ws := range wa {
		if len(ws) > 0 {
			return false
		}
	}
	return true
}

// Validate enforces start < end and non-overlapping windows per day. It also
// sorts each day's windows by start time in place.
func (wa WeeklyAvailability) Validate() error {
	for day, ws := range wa {
		sort.Slice(ws, func(i, j int) bool { return ws[i].Start < ws[j].Start })
		for i, w := range ws {
			if w.Start < 0 || w.End > EndOfDay {
				return Validationf("validate availability", "%s window %d out of range", DayName(day), i)
			}
			if w.Start >= w.End {
				return Validationf("validate availability", "%s window %s-%s: start must be before end", DayName(day), w.Start, w.End)
			}
			if i > 0 && ws[i-1].End > w.Start {
				return Validationf("validate availability", "%s windows %s-%s and %s-%s overlap",
					DayName(day), ws[i-1].Start, ws[i-1].End, w.Start, w.End)
			}
		}
	}
	return nil
}

// DayName returns the upper-case day name used on the wire ("MONDAY").
func DayName(d time.Weekday) string {
	return strings.ToUpper(d.String())
}

// ParseWeekday accepts "MONDAY", "monday" or "Mon".
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return 0, Validationf("parse weekday", "unknown day %q", s)
}

func (wa WeeklyAvailability) MarshalJSON() ([]byte, error) {
	out := make(map[string][]AvailabilityWindow, len(wa))
	for d, ws := range wa {
		out[DayName(d)] = ws
	}
	return json.Marshal(out)
}

func (wa *WeeklyAvailability) UnmarshalJSON(b []byte) error {
	var raw map[string][]AvailabilityWindow
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := WeeklyFromNames(raw)
	if err != nil {
		return err
	}
	*wa = parsed
	return nil
}

// WeeklyFromNames converts a day-name keyed map into WeeklyAvailability.
func WeeklyFromNames(raw map[string][]AvailabilityWindow) (WeeklyAvailability, error) {
	out := make(WeeklyAvailability, len(raw))
	for name, ws := range raw {
		d, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		out[d] = append(out[d], ws...)
	}
	return out, nil
}

// Pattern is a recurring (type, weekday, time-of-day) cluster inferred from
// completed sessions.
type Pattern struct {
	Type            SessionType  `json:"type"`
	DayOfWeek       time.Weekday `json:"day_of_week"`
	Hour            int          `json:"hour"`
	Minute          int          `json:"minute"`
	DurationMinutes int          `json:"duration_minutes"`
	Priority        int          `json:"priority"`
	Frequency       int          `json:"frequency"`
	SuccessRate     float64      `json:"success_rate"`
	RecencyWeight   float64      `json:"recency_weight"`
	Title           string       `json:"title"`
}

// Suggestion is a proposed future slot. Accepting it means creating a Session
// from the same fields.
type Suggestion struct {
	Title     string      `json:"title"`
	Type      SessionType `json:"type"`
	StartTime time.Time   `json:"start_time"`
	EndTime   time.Time   `json:"end_time"`
	Priority  int         `json:"priority"`
	Score     int         `json:"score"`
	Reasons   []string    `json:"reasons"`
}
