package timeclock

import (
	"context"
	"errors"
	"testing"
	"time"

	"shiftly/timeclock/internal/model"
)

type fakeEntryStore struct {
	created     []model.TimeClockEntry
	createErr   error
	breakStarts map[string]time.Time
	breakEnds   map[string]time.Time
	closed      map[string]time.Time
}

func newFakeEntryStore() *fakeEntryStore {
	return &fakeEntryStore{
		breakStarts: map[string]time.Time{},
		breakEnds:   map[string]time.Time{},
		closed:      map[string]time.Time{},
	}
}

func (f *fakeEntryStore) CreateEntry(_ context.Context, entry model.TimeClockEntry) (model.TimeClockEntry, error) {
	if f.createErr != nil {
		return model.TimeClockEntry{}, f.createErr
	}
	f.created = append(f.created, entry)
	return entry, nil
}

func (f *fakeEntryStore) SetBreakStart(_ context.Context, entryID string, at time.Time) error {
	f.breakStarts[entryID] = at
	return nil
}

func (f *fakeEntryStore) SetBreakEnd(_ context.Context, entryID string, at time.Time) error {
	f.breakEnds[entryID] = at
	return nil
}

func (f *fakeEntryStore) CloseEntry(_ context.Context, entryID string, clockOut time.Time, _ *time.Time, _, _ float64) error {
	f.closed[entryID] = clockOut
	return nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestClockInFromIdle(t *testing.T) {
	store := newFakeEntryStore()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	machine := NewMachine(store, 8, fixedClock(now))

	entry, err := machine.ClockIn(context.Background(), "shift-1", "emp-1")
	if err != nil {
		t.Fatalf("clock in error: %v", err)
	}
	if !entry.ClockIn.Equal(now) {
		t.Fatalf("expected clock in at %s, got %s", now, entry.ClockIn)
	}
	if machine.State() != StateClockedIn {
		t.Fatalf("expected clocked_in, got %s", machine.State())
	}
	if len(store.created) != 1 {
		t.Fatalf("expected one created entry, got %d", len(store.created))
	}
}

func TestClockInRejectedWhileClockedIn(t *testing.T) {
	store := newFakeEntryStore()
	machine := NewMachine(store, 8, nil)
	if _, err := machine.ClockIn(context.Background(), "shift-1", "emp-1"); err != nil {
		t.Fatalf("clock in error: %v", err)
	}
	if _, err := machine.ClockIn(context.Background(), "shift-2", "emp-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if len(store.created) != 1 {
		t.Fatalf("second clock in must not reach the store")
	}
}

func TestClockInPropagatesOpenEntryConflict(t *testing.T) {
	store := newFakeEntryStore()
	store.createErr = model.ErrOpenEntryExists
	machine := NewMachine(store, 8, nil)
	if _, err := machine.ClockIn(context.Background(), "shift-1", "emp-1"); !errors.Is(err, model.ErrOpenEntryExists) {
		t.Fatalf("expected open entry conflict, got %v", err)
	}
	if machine.State() != StateNotClockedIn {
		t.Fatalf("failed clock in must not mutate state")
	}
}

func TestBreakTransitions(t *testing.T) {
	store := newFakeEntryStore()
	machine := NewMachine(store, 8, nil)

	if err := machine.StartBreak(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("break from idle must be rejected, got %v", err)
	}
	if err := machine.EndBreak(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("end break from idle must be rejected, got %v", err)
	}

	if _, err := machine.ClockIn(context.Background(), "shift-1", "emp-1"); err != nil {
		t.Fatalf("clock in error: %v", err)
	}
	if err := machine.EndBreak(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("end break without open break must be rejected, got %v", err)
	}
	if err := machine.StartBreak(context.Background()); err != nil {
		t.Fatalf("start break error: %v", err)
	}
	if machine.State() != StateOnBreak {
		t.Fatalf("expected on_break, got %s", machine.State())
	}
	if err := machine.StartBreak(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second break start must be rejected, got %v", err)
	}
	if err := machine.EndBreak(context.Background()); err != nil {
		t.Fatalf("end break error: %v", err)
	}
	if machine.State() != StateClockedIn {
		t.Fatalf("expected clocked_in after break, got %s", machine.State())
	}
}

func TestClockOutSubtractsBreak(t *testing.T) {
	// 09:00-17:00 with a 12:00-12:30 break is 7.5 hours, no overtime.
	clockIn := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	breakStart := clockIn.Add(3 * time.Hour)
	breakEnd := breakStart.Add(30 * time.Minute)
	clockOut := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)

	store := newFakeEntryStore()
	machine := NewMachine(store, 8, fixedClock(clockOut))
	machine.Adopt(model.TimeClockEntry{
		ID:         "entry-1",
		ShiftID:    "shift-1",
		EmployeeID: "emp-1",
		ClockIn:    clockIn,
		BreakStart: &breakStart,
		BreakEnd:   &breakEnd,
	})

	closed, err := machine.ClockOut(context.Background())
	if err != nil {
		t.Fatalf("clock out error: %v", err)
	}
	if closed.TotalHours == nil || *closed.TotalHours != 7.5 {
		t.Fatalf("expected 7.5 total hours, got %v", closed.TotalHours)
	}
	if closed.OvertimeHours == nil || *closed.OvertimeHours != 0 {
		t.Fatalf("expected 0 overtime, got %v", closed.OvertimeHours)
	}
	if machine.State() != StateClockedOut {
		t.Fatalf("expected clocked_out, got %s", machine.State())
	}
	if _, err := machine.ClockOut(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("clocked_out is terminal, got %v", err)
	}
}

func TestClockOutAutoClosesOpenBreak(t *testing.T) {
	clockIn := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	breakStart := clockIn.Add(4 * time.Hour)
	clockOut := clockIn.Add(5 * time.Hour)

	store := newFakeEntryStore()
	machine := NewMachine(store, 8, fixedClock(clockOut))
	machine.Adopt(model.TimeClockEntry{
		ID:         "entry-1",
		EmployeeID: "emp-1",
		ClockIn:    clockIn,
		BreakStart: &breakStart,
	})

	closed, err := machine.ClockOut(context.Background())
	if err != nil {
		t.Fatalf("clock out error: %v", err)
	}
	if closed.BreakEnd == nil || !closed.BreakEnd.Equal(clockOut) {
		t.Fatalf("expected break auto-closed at clock out, got %v", closed.BreakEnd)
	}
	// 5h minus a 1h break.
	if closed.TotalHours == nil || *closed.TotalHours != 4 {
		t.Fatalf("expected 4 total hours, got %v", closed.TotalHours)
	}
}

func TestOvertimeThreshold(t *testing.T) {
	cases := map[float64]float64{
		0:   0,
		8:   0,
		8.5: 0.5,
		12:  4,
	}
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for worked, expected := range cases {
		entry := model.TimeClockEntry{ClockIn: base}
		clockOut := base.Add(time.Duration(worked * float64(time.Hour)))
		total, overtime := ComputeTotals(entry, clockOut, 8)
		if total != worked {
			t.Fatalf("worked %v: expected total %v, got %v", worked, worked, total)
		}
		if overtime != expected {
			t.Fatalf("worked %v: expected overtime %v, got %v", worked, expected, overtime)
		}
	}
}

func TestTotalsFlooredAtZero(t *testing.T) {
	clockIn := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	breakStart := clockIn
	breakEnd := clockIn.Add(time.Hour)
	entry := model.TimeClockEntry{ClockIn: clockIn, BreakStart: &breakStart, BreakEnd: &breakEnd}
	total, overtime := ComputeTotals(entry, clockIn.Add(30*time.Minute), 8)
	if total != 0 || overtime != 0 {
		t.Fatalf("expected zero totals, got %v/%v", total, overtime)
	}
}

func TestElapsedExcludesOpenBreak(t *testing.T) {
	clockIn := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	breakStart := clockIn.Add(2 * time.Hour)
	entry := model.TimeClockEntry{ClockIn: clockIn, BreakStart: &breakStart}

	// 30 minutes into an open break the display stays frozen at 2:00:00.
	if got := Elapsed(entry, breakStart.Add(30*time.Minute)); got != 2*time.Hour {
		t.Fatalf("expected 2h elapsed during break, got %s", got)
	}

	breakEnd := breakStart.Add(30 * time.Minute)
	entry.BreakEnd = &breakEnd
	if got := Elapsed(entry, breakEnd.Add(time.Hour)); got != 3*time.Hour {
		t.Fatalf("expected 3h elapsed after break, got %s", got)
	}
}

func TestFormatElapsed(t *testing.T) {
	cases := map[time.Duration]string{
		0:                "0:00:00",
		59 * time.Second: "0:00:59",
		61 * time.Minute: "1:01:00",
	}
	for d, expected := range cases {
		if got := FormatElapsed(d); got != expected {
			t.Fatalf("duration %s: expected %q, got %q", d, expected, got)
		}
	}
	if got := FormatElapsed(10*time.Hour + 5*time.Minute + 9*time.Second); got != "10:05:09" {
		t.Fatalf("expected 10:05:09, got %q", got)
	}
}
