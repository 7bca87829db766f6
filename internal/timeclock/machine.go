package timeclock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"shiftly/timeclock/internal/model"
)

type State string

const (
	StateNotClockedIn State = "not_clocked_in"
	StateClockedIn    State = "clocked_in"
	StateOnBreak      State = "on_break"
	StateClockedOut   State = "clocked_out"
)

// ErrInvalidTransition marks an action invoked from an illegal state. The
// machine is left untouched; callers report it and move on.
var ErrInvalidTransition = errors.New("invalid transition")

// EntryStore is the slice of the remote store the machine writes through.
type EntryStore interface {
	CreateEntry(ctx context.Context, entry model.TimeClockEntry) (model.TimeClockEntry, error)
	SetBreakStart(ctx context.Context, entryID string, at time.Time) error
	SetBreakEnd(ctx context.Context, entryID string, at time.Time) error
	CloseEntry(ctx context.Context, entryID string, clockOut time.Time, breakEnd *time.Time, totalHours, overtimeHours float64) error
}

// Machine runs the clock-in / break / clock-out lifecycle for one employee.
// A new shift starts a fresh cycle: clocked_out falls back to not_clocked_in
// once the closed entry is released with Reset.
type Machine struct {
	store          EntryStore
	thresholdHours float64
	now            func() time.Time

	mu    sync.Mutex
	entry *model.TimeClockEntry
}

func NewMachine(store EntryStore, thresholdHours float64, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{store: store, thresholdHours: thresholdHours, now: now}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Machine) stateLocked() State {
	switch {
	case m.entry == nil:
		return StateNotClockedIn
	case !m.entry.Open():
		return StateClockedOut
	case m.entry.OnBreak():
		return StateOnBreak
	default:
		return StateClockedIn
	}
}

// Current returns a copy of the tracked entry, nil when idle.
func (m *Machine) Current() *model.TimeClockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entry == nil {
		return nil
	}
	entry := *m.entry
	return &entry
}

// Adopt resumes an already-open entry, e.g. after a restart or when the
// store reports a session created elsewhere.
func (m *Machine) Adopt(entry model.TimeClockEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = &entry
}

func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = nil
}

// ClockIn opens an entry for the shift. Legal only while not clocked in; the
// store rejects it with model.ErrOpenEntryExists when another open entry
// exists for the employee.
func (m *Machine) ClockIn(ctx context.Context, shiftID, employeeID string) (model.TimeClockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stateLocked() != StateNotClockedIn {
		return model.TimeClockEntry{}, ErrInvalidTransition
	}
	entry := model.TimeClockEntry{
		ID:         uuid.NewString(),
		ShiftID:    shiftID,
		EmployeeID: employeeID,
		ClockIn:    m.now().UTC(),
	}
	created, err := m.store.CreateEntry(ctx, entry)
	if err != nil {
		return model.TimeClockEntry{}, err
	}
	m.entry = &created
	return created, nil
}

func (m *Machine) StartBreak(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stateLocked() != StateClockedIn {
		return ErrInvalidTransition
	}
	at := m.now().UTC()
	if err := m.store.SetBreakStart(ctx, m.entry.ID, at); err != nil {
		return err
	}
	m.entry.BreakStart = &at
	return nil
}

func (m *Machine) EndBreak(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stateLocked() != StateOnBreak {
		return ErrInvalidTransition
	}
	at := m.now().UTC()
	if err := m.store.SetBreakEnd(ctx, m.entry.ID, at); err != nil {
		return err
	}
	m.entry.BreakEnd = &at
	return nil
}

// ClockOut closes the entry from clocked_in or on_break. An unended break is
// closed at the clock-out instant before totals are derived.
func (m *Machine) ClockOut(ctx context.Context) (model.TimeClockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.stateLocked()
	if state != StateClockedIn && state != StateOnBreak {
		return model.TimeClockEntry{}, ErrInvalidTransition
	}
	at := m.now().UTC()

	closed := *m.entry
	var autoBreakEnd *time.Time
	if state == StateOnBreak {
		autoBreakEnd = &at
		closed.BreakEnd = &at
	}
	total, overtime := ComputeTotals(closed, at, m.thresholdHours)
	if err := m.store.CloseEntry(ctx, closed.ID, at, autoBreakEnd, total, overtime); err != nil {
		return model.TimeClockEntry{}, err
	}
	closed.ClockOut = &at
	closed.TotalHours = &total
	closed.OvertimeHours = &overtime
	m.entry = &closed
	return closed, nil
}

// ElapsedFormatted is the running H:MM:SS display for an open entry. Empty
// while idle or after clock-out.
func (m *Machine) ElapsedFormatted() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entry == nil || !m.entry.Open() {
		return ""
	}
	return FormatElapsed(Elapsed(*m.entry, m.now()))
}

// ComputeTotals derives total and overtime hours for an entry closed at
// clockOut: worked time minus the completed break, floored at zero, with
// overtime being whatever exceeds the threshold.
func ComputeTotals(entry model.TimeClockEntry, clockOut time.Time, thresholdHours float64) (totalHours, overtimeHours float64) {
	workedMinutes := clockOut.Sub(entry.ClockIn).Minutes() - entry.BreakMinutes()
	if workedMinutes < 0 {
		workedMinutes = 0
	}
	totalHours = workedMinutes / 60
	overtimeHours = totalHours - thresholdHours
	if overtimeHours < 0 {
		overtimeHours = 0
	}
	return totalHours, overtimeHours
}

// Elapsed is worked time since clock-in excluding break time, including the
// still-running portion of an open break, so the display freezes while the
// employee is on break.
func Elapsed(entry model.TimeClockEntry, now time.Time) time.Duration {
	elapsed := now.Sub(entry.ClockIn)
	if entry.BreakStart != nil {
		if entry.BreakEnd != nil {
			elapsed -= entry.BreakEnd.Sub(*entry.BreakStart)
		} else {
			elapsed -= now.Sub(*entry.BreakStart)
		}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}

func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int(d.Seconds())
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
