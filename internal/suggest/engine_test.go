package suggest

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/cadence/internal/availability"
	"github.com/kalambet/cadence/internal/schedule"
	"github.com/kalambet/cadence/internal/timewindow"
)

// --- fakes ---

type fakeStore struct {
	sessions   []schedule.Session
	avail      schedule.WeeklyAvailability
	availErr   error
	historyErr error
}

func (f *fakeStore) ActiveSessionsInRange(ctx context.Context, userID string, start, end time.Time) ([]schedule.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []schedule.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.Active() && timewindow.Overlaps(s.StartTime, s.EndTime, start, end) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) SessionHistory(ctx context.Context, userID string, since, until time.Time) ([]schedule.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	var out []schedule.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.DeletedAt == nil && !s.StartTime.Before(since) && s.StartTime.Before(until) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAvailability(ctx context.Context, userID string) (schedule.WeeklyAvailability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.availErr != nil {
		return nil, f.availErr
	}
	return f.avail, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recordingObserver struct {
	mu      sync.Mutex
	modes   []string
	dropped map[string]int
}

func (o *recordingObserver) ObserveRun(mode string, _ time.Duration, _ int, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.modes = append(o.modes, mode)
}

func (o *recordingObserver) ObserveDropped(reason string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dropped == nil {
		o.dropped = make(map[string]int)
	}
	o.dropped[reason] += n
}

// --- fixtures ---

var now = time.Date(2026, 5, 6, 12, 0, 0, 0, time.UTC) // Wednesday

func span(sh, sm, eh, em int) schedule.AvailabilityWindow {
	return schedule.AvailabilityWindow{Start: schedule.NewTimeOfDay(sh, sm), End: schedule.NewTimeOfDay(eh, em)}
}

// standardAvailability is Mon-Fri 07:00-09:00 and weekends 10:00-14:00.
func standardAvailability() schedule.WeeklyAvailability {
	wa := schedule.WeeklyAvailability{}
	for d := time.Monday; d <= time.Friday; d++ {
		wa[d] = []schedule.AvailabilityWindow{span(7, 0, 9, 0)}
	}
	wa[time.Saturday] = []schedule.AvailabilityWindow{span(10, 0, 14, 0)}
	wa[time.Sunday] = []schedule.AvailabilityWindow{span(10, 0, 14, 0)}
	return wa
}

func sess(id string, typ schedule.SessionType, start time.Time, minutes, priority int, completed bool) schedule.Session {
	return schedule.Session{
		ID:        id,
		UserID:    "u1",
		Type:      typ,
		Title:     typ.Label(),
		StartTime: start,
		EndTime:   start.Add(time.Duration(minutes) * time.Minute),
		Priority:  priority,
		Completed: completed,
	}
}

// weeklyHistory returns three completed past Monday sessions at hh:mm in loc.
func weeklyHistory(prefix string, typ schedule.SessionType, hh, mm, minutes, priority int, loc *time.Location) []schedule.Session {
	var out []schedule.Session
	for i, day := range []int{20, 27} {
		start := time.Date(2026, 4, day, hh, mm, 0, 0, loc)
		out = append(out, sess(prefix+string(rune('a'+i)), typ, start, minutes, priority, true))
	}
	out = append(out, sess(prefix+"c", typ, time.Date(2026, 5, 4, hh, mm, 0, 0, loc), minutes, priority, true))
	return out
}

func newTestEngine(store *fakeStore) *Engine {
	return NewEngineWithClock(store, store, DefaultConfig(), fixedClock{now})
}

func mustSuggest(t *testing.T, e *Engine, opts Options, tz string) []schedule.Suggestion {
	t.Helper()
	got, err := e.SuggestTimeSlots(context.Background(), "u1", opts, tz)
	if err != nil {
		t.Fatalf("SuggestTimeSlots: %v", err)
	}
	return got
}

// assertInvariants checks the properties every result must satisfy.
func assertInvariants(t *testing.T, got []schedule.Suggestion, store *fakeStore, loc *time.Location) {
	t.Helper()
	cfg := DefaultConfig()
	checker := availability.NewChecker(store.avail, loc)
	if len(got) > cfg.MaxSuggestions {
		t.Errorf("got %d suggestions, cap is %d", len(got), cfg.MaxSuggestions)
	}
	perDay := map[string]int{}
	perType := map[schedule.SessionType]int{}
	for i, s := range got {
		if !s.EndTime.After(s.StartTime) {
			t.Errorf("[%d] end %v not after start %v", i, s.EndTime, s.StartTime)
		}
		if s.Priority < 1 || s.Priority > 5 {
			t.Errorf("[%d] priority = %d", i, s.Priority)
		}
		if s.Score < 0 || s.Score > 100 {
			t.Errorf("[%d] score = %d", i, s.Score)
		}
		if len(s.Reasons) == 0 {
			t.Errorf("[%d] has no reasons", i)
		}
		if s.StartTime.Before(now) {
			t.Errorf("[%d] starts in the past: %v", i, s.StartTime)
		}
		if r := checker.Check(s.StartTime, s.EndTime); !r.Valid {
			t.Errorf("[%d] %v outside availability: %s", i, s.StartTime.In(loc), r.Reason)
		}
		for _, sess := range store.sessions {
			if sess.Active() && timewindow.Overlaps(sess.StartTime, sess.EndTime, s.StartTime, s.EndTime) {
				t.Errorf("[%d] overlaps session %s", i, sess.ID)
			}
		}
		for j := 0; j < i; j++ {
			if timewindow.Overlaps(got[j].StartTime, got[j].EndTime, s.StartTime, s.EndTime) {
				t.Errorf("suggestions %d and %d overlap", j, i)
			}
			if got[j].Score < s.Score {
				t.Errorf("suggestion %d (score %d) ranked above %d (score %d)", j, got[j].Score, i, s.Score)
			}
		}
		perDay[timewindow.DateKey(s.StartTime.In(loc))]++
		perType[s.Type]++
	}
	for d, n := range perDay {
		if n > cfg.MaxPerDay {
			t.Errorf("%d suggestions on %s, cap is %d", n, d, cfg.MaxPerDay)
		}
	}
	for typ, n := range perType {
		if n > cfg.MaxPerType {
			t.Errorf("%d suggestions of %s, cap is %d", n, typ, cfg.MaxPerType)
		}
	}
}

// --- scenarios ---

func TestSuggest_WeeklyPatternProducesMondaySlot(t *testing.T) {
	store := &fakeStore{
		sessions: weeklyHistory("dw", schedule.TypeDeepWork, 7, 0, 60, 3, time.UTC),
		avail:    standardAvailability(),
	}
	got := mustSuggest(t, newTestEngine(store), Options{LookAheadDays: 14}, "UTC")
	assertInvariants(t, got, store, time.UTC)

	found := false
	for _, s := range got {
		if s.Type == schedule.TypeDeepWork && s.StartTime.Weekday() == time.Monday &&
			s.StartTime.Hour() == 7 && s.StartTime.Minute() == 0 {
			found = true
			if s.EndTime.Sub(s.StartTime) != time.Hour {
				t.Errorf("duration = %v, want 1h", s.EndTime.Sub(s.StartTime))
			}
		}
	}
	if !found {
		t.Fatalf("no Monday 07:00 Deep Work suggestion in %+v", got)
	}
}

func TestSuggest_DefaultsWithoutHistory(t *testing.T) {
	store := &fakeStore{avail: standardAvailability()}
	obs := &recordingObserver{}
	e := newTestEngine(store)
	e.SetObserver(obs)

	got := mustSuggest(t, e, Options{}, "UTC")
	assertInvariants(t, got, store, time.UTC)

	if len(got) != 3 {
		t.Fatalf("got %d default suggestions, want 3: %+v", len(got), got)
	}
	types := map[schedule.SessionType]bool{}
	days := map[string]bool{}
	for _, s := range got {
		types[s.Type] = true
		days[timewindow.DateKey(s.StartTime)] = true
		if s.Priority != 3 {
			t.Errorf("%s priority = %d, want 3", s.Type, s.Priority)
		}
		if s.EndTime.Sub(s.StartTime) != time.Hour {
			t.Errorf("%s duration = %v, want 1h", s.Type, s.EndTime.Sub(s.StartTime))
		}
		if s.Reasons[0] != reasonDefault {
			t.Errorf("%s first reason = %q", s.Type, s.Reasons[0])
		}
	}
	for _, want := range []schedule.SessionType{schedule.TypeDeepWork, schedule.TypeWorkout, schedule.TypeLanguage} {
		if !types[want] {
			t.Errorf("missing default %s", want)
		}
	}
	if len(days) != 3 {
		t.Errorf("defaults share days: %v", days)
	}
	if len(obs.modes) != 1 || obs.modes[0] != ModeDefault {
		t.Errorf("observed modes = %v, want [default]", obs.modes)
	}
}

func TestSuggest_MissedHistoryFallsBackToDefaults(t *testing.T) {
	history := weeklyHistory("dw", schedule.TypeDeepWork, 7, 0, 60, 3, time.UTC)
	for i := range history {
		history[i].Completed = false
	}
	store := &fakeStore{sessions: history, avail: standardAvailability()}
	obs := &recordingObserver{}
	e := newTestEngine(store)
	e.SetObserver(obs)

	got := mustSuggest(t, e, Options{}, "UTC")
	assertInvariants(t, got, store, time.UTC)
	if len(obs.modes) != 1 || obs.modes[0] != ModeDefault {
		t.Errorf("observed modes = %v, want [default]", obs.modes)
	}
	for _, s := range got {
		if s.Reasons[0] != reasonDefault {
			t.Errorf("%s suggested from missed sessions: %v", s.Type, s.Reasons)
		}
	}

	ps, err := e.PatternsFor(context.Background(), "u1", "UTC")
	if err != nil {
		t.Fatalf("PatternsFor: %v", err)
	}
	if len(ps) != 0 {
		t.Errorf("PatternsFor = %+v, want none", ps)
	}
}

func TestSuggest_DefaultSlotCentredInLargestFreeWindow(t *testing.T) {
	store := &fakeStore{avail: standardAvailability()}
	got := mustSuggest(t, newTestEngine(store), Options{PreferredTypes: []schedule.SessionType{schedule.TypeReading}}, "UTC")
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	// Wednesday's window has already passed, so Thursday 07:00-09:00 is the
	// first option and its midpoint slot is 07:30-08:30.
	want := time.Date(2026, 5, 7, 7, 30, 0, 0, time.UTC)
	if !got[0].StartTime.Equal(want) {
		t.Errorf("start = %v, want %v", got[0].StartTime, want)
	}
	if got[0].Type != schedule.TypeReading {
		t.Errorf("type = %s, want READING", got[0].Type)
	}
}

func TestSuggest_ExactConflictExcluded(t *testing.T) {
	blocking := sess("blocking", schedule.TypeClientMeeting, time.Date(2026, 5, 11, 7, 0, 0, 0, time.UTC), 60, 3, false)
	store := &fakeStore{
		sessions: append(weeklyHistory("dw", schedule.TypeDeepWork, 7, 0, 60, 3, time.UTC), blocking),
		avail:    standardAvailability(),
	}
	got := mustSuggest(t, newTestEngine(store), Options{LookAheadDays: 14}, "UTC")
	assertInvariants(t, got, store, time.UTC)

	sawNextWeek := false
	for _, s := range got {
		if s.StartTime.Equal(blocking.StartTime) {
			t.Errorf("suggestion coincides with existing session: %+v", s)
		}
		if s.StartTime.Equal(time.Date(2026, 5, 18, 7, 0, 0, 0, time.UTC)) {
			sawNextWeek = true
		}
	}
	if !sawNextWeek {
		t.Error("following Monday's slot should still be suggested")
	}
}

func TestSuggest_CompletedSessionDoesNotBlock(t *testing.T) {
	done := sess("done", schedule.TypeDeepWork, time.Date(2026, 5, 11, 7, 0, 0, 0, time.UTC), 60, 3, true)
	store := &fakeStore{
		sessions: append(weeklyHistory("dw", schedule.TypeDeepWork, 7, 0, 60, 3, time.UTC), done),
		avail:    standardAvailability(),
	}
	got := mustSuggest(t, newTestEngine(store), Options{}, "UTC")
	for _, s := range got {
		if s.StartTime.Equal(done.StartTime) {
			return
		}
	}
	t.Errorf("slot over a completed session should remain available: %+v", got)
}

func TestSuggest_OutsideAvailabilityExcluded(t *testing.T) {
	store := &fakeStore{
		sessions: weeklyHistory("w", schedule.TypeWorkout, 6, 0, 60, 3, time.UTC),
		avail:    standardAvailability(),
	}
	obs := &recordingObserver{}
	e := newTestEngine(store)
	e.SetObserver(obs)

	got := mustSuggest(t, e, Options{}, "UTC")
	assertInvariants(t, got, store, time.UTC)
	for _, s := range got {
		if s.StartTime.Hour() == 6 {
			t.Errorf("06:00 slot emitted despite availability starting 07:00: %+v", s)
		}
	}
	if obs.dropped[dropAvailability] < 2 {
		t.Errorf("availability drops = %d, want >= 2", obs.dropped[dropAvailability])
	}
	if len(obs.modes) != 1 || obs.modes[0] != ModeDefault {
		t.Errorf("mode = %v, want fallback to default", obs.modes)
	}
}

func TestSuggest_CloseHighPriorityPatternsPenalised(t *testing.T) {
	var history []schedule.Session
	history = append(history, weeklyHistory("dw", schedule.TypeDeepWork, 7, 0, 30, 5, time.UTC)...)
	history = append(history, weeklyHistory("st", schedule.TypeStudy, 7, 30, 30, 5, time.UTC)...)
	store := &fakeStore{sessions: history, avail: standardAvailability()}

	got := mustSuggest(t, newTestEngine(store), Options{}, "UTC")
	assertInvariants(t, got, store, time.UTC)

	early := map[string]int{}
	for _, s := range got {
		if s.StartTime.Hour() == 7 && s.StartTime.Minute() == 0 {
			early[timewindow.DateKey(s.StartTime)] = s.Score
		}
	}
	if len(early) == 0 {
		t.Fatalf("no 07:00 suggestions: %+v", got)
	}
	for _, s := range got {
		if s.StartTime.Minute() != 30 {
			continue
		}
		first, ok := early[timewindow.DateKey(s.StartTime)]
		if !ok {
			continue
		}
		if first-s.Score < 25 {
			t.Errorf("07:30 score %d not penalised against 07:00 score %d", s.Score, first)
		}
		last := s.Reasons[len(s.Reasons)-1]
		if last != reasonCloseSuggestion {
			t.Errorf("07:30 last reason = %q, want %q", last, reasonCloseSuggestion)
		}
	}
}

func TestSuggest_PerDayCap(t *testing.T) {
	var history []schedule.Session
	history = append(history, weeklyHistory("a", schedule.TypeDeepWork, 7, 0, 60, 3, time.UTC)...)
	history = append(history, weeklyHistory("b", schedule.TypeWorkout, 11, 0, 60, 3, time.UTC)...)
	history = append(history, weeklyHistory("c", schedule.TypeReading, 15, 0, 60, 3, time.UTC)...)
	avail := schedule.WeeklyAvailability{time.Monday: {span(6, 0, 20, 0)}}
	store := &fakeStore{sessions: history, avail: avail}

	got := mustSuggest(t, newTestEngine(store), Options{}, "UTC")
	assertInvariants(t, got, store, time.UTC)
	if len(got) != 4 {
		t.Errorf("got %d suggestions, want 2 on each of two Mondays", len(got))
	}
}

func TestSuggest_DSTTransition(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	clock := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	var history []schedule.Session
	for _, day := range []int{16, 23} {
		history = append(history, sess("f"+string(rune('0'+day%10)), schedule.TypeDeepWork, time.Date(2026, 2, day, 7, 0, 0, 0, ny), 60, 3, true))
	}
	history = append(history, sess("m2", schedule.TypeDeepWork, time.Date(2026, 3, 2, 7, 0, 0, 0, ny), 60, 3, true))
	store := &fakeStore{sessions: history, avail: standardAvailability()}

	e := NewEngineWithClock(store, store, DefaultConfig(), fixedClock{clock})
	got, err := e.SuggestTimeSlots(context.Background(), "u1", Options{}, "America/New_York")
	if err != nil {
		t.Fatalf("SuggestTimeSlots: %v", err)
	}
	want := time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC) // 07:00 EDT
	for _, s := range got {
		if s.StartTime.Equal(want) {
			local := s.StartTime.In(ny)
			if local.Hour() != 7 || local.Minute() != 0 {
				t.Errorf("local start = %v, want 07:00", local)
			}
			return
		}
	}
	t.Errorf("no suggestion at %v after spring forward: %+v", want, got)
}

func TestSuggest_PreferredTypesFilterPatterns(t *testing.T) {
	var history []schedule.Session
	history = append(history, weeklyHistory("a", schedule.TypeDeepWork, 7, 0, 60, 3, time.UTC)...)
	history = append(history, weeklyHistory("b", schedule.TypeWorkout, 8, 0, 60, 3, time.UTC)...)
	store := &fakeStore{sessions: history, avail: standardAvailability()}

	got := mustSuggest(t, newTestEngine(store), Options{PreferredTypes: []schedule.SessionType{schedule.TypeWorkout}}, "UTC")
	if len(got) == 0 {
		t.Fatal("expected workout suggestions")
	}
	for _, s := range got {
		if s.Type != schedule.TypeWorkout {
			t.Errorf("unexpected type %s", s.Type)
		}
	}
}

func TestSuggest_PriorityBoundsFilterPatterns(t *testing.T) {
	var history []schedule.Session
	history = append(history, weeklyHistory("a", schedule.TypeDeepWork, 7, 0, 60, 5, time.UTC)...)
	history = append(history, weeklyHistory("b", schedule.TypeWorkout, 8, 0, 60, 2, time.UTC)...)
	store := &fakeStore{sessions: history, avail: standardAvailability()}

	got := mustSuggest(t, newTestEngine(store), Options{MinPriority: 4}, "UTC")
	if len(got) == 0 {
		t.Fatal("expected suggestions")
	}
	for _, s := range got {
		if s.Priority < 4 {
			t.Errorf("%s priority %d below minimum", s.Type, s.Priority)
		}
	}
}

func TestSuggest_BusyScheduleSkipsDefaults(t *testing.T) {
	var busy []schedule.Session
	for i := 0; i < 10; i++ {
		start := time.Date(2026, 5, 7+i, 18, 0, 0, 0, time.UTC)
		busy = append(busy, sess("busy"+string(rune('a'+i)), schedule.TypeClientMeeting, start, 60, 3, false))
	}
	store := &fakeStore{sessions: busy, avail: standardAvailability()}
	obs := &recordingObserver{}
	e := newTestEngine(store)
	e.SetObserver(obs)

	got := mustSuggest(t, e, Options{}, "UTC")
	if len(got) != 0 {
		t.Errorf("got %d suggestions for a full schedule, want 0", len(got))
	}
	if obs.modes[0] != ModeNone {
		t.Errorf("mode = %s, want none", obs.modes[0])
	}
}

func TestSuggest_NoAvailabilityIsEmpty(t *testing.T) {
	store := &fakeStore{sessions: weeklyHistory("dw", schedule.TypeDeepWork, 7, 0, 60, 3, time.UTC)}
	got := mustSuggest(t, newTestEngine(store), Options{}, "UTC")
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestSuggest_Deterministic(t *testing.T) {
	var history []schedule.Session
	history = append(history, weeklyHistory("a", schedule.TypeDeepWork, 7, 0, 60, 4, time.UTC)...)
	history = append(history, weeklyHistory("b", schedule.TypeWorkout, 7, 30, 45, 5, time.UTC)...)
	history = append(history, weeklyHistory("c", schedule.TypeLanguage, 8, 0, 30, 2, time.UTC)...)
	store := &fakeStore{sessions: history, avail: standardAvailability()}
	e := newTestEngine(store)

	first := mustSuggest(t, e, Options{}, "UTC")
	for i := 0; i < 5; i++ {
		if again := mustSuggest(t, e, Options{}, "UTC"); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%+v\n%+v", i, first, again)
		}
	}
}

func TestSuggest_Validation(t *testing.T) {
	store := &fakeStore{avail: standardAvailability()}
	e := newTestEngine(store)
	far := now.AddDate(0, 0, 20)

	cases := []struct {
		name string
		opts Options
		tz   string
	}{
		{"bad timezone", Options{}, "Mars/Olympus"},
		{"empty timezone", Options{}, ""},
		{"look ahead too long", Options{LookAheadDays: 31}, "UTC"},
		{"negative look ahead", Options{LookAheadDays: -1}, "UTC"},
		{"start beyond horizon", Options{LookAheadDays: 14, StartDate: &far}, "UTC"},
		{"priority out of range", Options{MinPriority: 6}, "UTC"},
		{"min above max", Options{MinPriority: 4, MaxPriority: 2}, "UTC"},
		{"unknown type", Options{PreferredTypes: []schedule.SessionType{"NAPPING"}}, "UTC"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.SuggestTimeSlots(context.Background(), "u1", tc.opts, tc.tz)
			if !schedule.IsKind(err, schedule.KindValidation) {
				t.Errorf("error = %v, want validation", err)
			}
		})
	}
}

func TestSuggest_StartDateShiftsWindow(t *testing.T) {
	store := &fakeStore{
		sessions: weeklyHistory("dw", schedule.TypeDeepWork, 7, 0, 60, 3, time.UTC),
		avail:    standardAvailability(),
	}
	start := time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC)
	got := mustSuggest(t, newTestEngine(store), Options{StartDate: &start, LookAheadDays: 7}, "UTC")
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want only Monday 18 May", len(got))
	}
	if want := time.Date(2026, 5, 18, 7, 0, 0, 0, time.UTC); !got[0].StartTime.Equal(want) {
		t.Errorf("start = %v, want %v", got[0].StartTime, want)
	}
}

func TestSuggest_Cancelled(t *testing.T) {
	store := &fakeStore{avail: standardAvailability()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := newTestEngine(store).SuggestTimeSlots(ctx, "u1", Options{}, "UTC")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if got != nil {
		t.Errorf("result = %v, want nil", got)
	}
}

func TestSuggest_StoreFailureIsTransient(t *testing.T) {
	store := &fakeStore{avail: standardAvailability(), historyErr: errors.New("disk I/O error")}
	_, err := newTestEngine(store).SuggestTimeSlots(context.Background(), "u1", Options{}, "UTC")
	if !schedule.IsKind(err, schedule.KindTransient) {
		t.Errorf("error = %v, want transient", err)
	}
}

func TestDetectPatterns_Engine(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(store)
	got, err := e.DetectPatterns(weeklyHistory("dw", schedule.TypeDeepWork, 7, 0, 60, 3, time.UTC), "UTC")
	if err != nil {
		t.Fatalf("DetectPatterns: %v", err)
	}
	if len(got) != 1 || got[0].Frequency != 3 || got[0].DayOfWeek != time.Monday || got[0].Hour != 7 {
		t.Errorf("patterns = %+v", got)
	}
	if _, err := e.DetectPatterns(nil, "nowhere"); !schedule.IsKind(err, schedule.KindValidation) {
		t.Errorf("bad timezone error = %v", err)
	}
}
