// Package tracker ties the clock session, state machine, shift poller and
// notification state together into the surface the UI consumes: one tracker
// per employee+device, alive only while that device is actively observing.
package tracker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"shiftly/timeclock/internal/model"
	"shiftly/timeclock/internal/notify"
	"shiftly/timeclock/internal/poller"
	"shiftly/timeclock/internal/session"
	"shiftly/timeclock/internal/timeclock"
)

// Backend is the narrow remote-store interface the engine consumes
// (repository.Store satisfies it).
type Backend interface {
	ListShiftsForEmployeeOnDate(ctx context.Context, employeeID string, day time.Time) ([]model.Shift, error)
	GetShift(ctx context.Context, shiftID string) (model.Shift, bool, error)
	GetOpenEntry(ctx context.Context, employeeID string) (model.TimeClockEntry, bool, error)
	CreateEntry(ctx context.Context, entry model.TimeClockEntry) (model.TimeClockEntry, error)
	SetBreakStart(ctx context.Context, entryID string, at time.Time) error
	SetBreakEnd(ctx context.Context, entryID string, at time.Time) error
	CloseEntry(ctx context.Context, entryID string, clockOut time.Time, breakEnd *time.Time, totalHours, overtimeHours float64) error
}

// Options carries the temporal policy; zero values fall back to the
// defaults the poller and machine apply themselves.
type Options struct {
	Poll              poller.Config
	DismissalTTL      time.Duration
	OvertimeThreshold float64
	Now               func() time.Time
}

type Tracker struct {
	employeeID  string
	backend     Backend
	session     *session.Store
	machine     *timeclock.Machine
	poller      *poller.Poller
	notifyStore notify.Store
	notifyTTL   time.Duration
	now         func() time.Time

	mu        sync.Mutex
	dismissed *model.Shift
}

func New(backend Backend, notifyStore notify.Store, employeeID string, opts Options) *Tracker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.DismissalTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	threshold := opts.OvertimeThreshold
	if threshold <= 0 {
		threshold = 8
	}
	sess := session.New(backend, employeeID)
	return &Tracker{
		employeeID:  employeeID,
		backend:     backend,
		session:     sess,
		machine:     timeclock.NewMachine(backend, threshold, now),
		poller:      poller.New(opts.Poll, backend, sess, notifyStore, employeeID, now),
		notifyStore: notifyStore,
		notifyTTL:   ttl,
		now:         now,
	}
}

// State is the read surface the UI renders from.
type State struct {
	UpcomingShift  *model.Shift          `json:"upcomingShift,omitempty"`
	ShowAlert      bool                  `json:"showAlert"`
	AlertShift     *model.Shift          `json:"alertShift,omitempty"`
	DismissedShift *model.Shift          `json:"dismissedShift,omitempty"`
	ActiveEntry    *model.TimeClockEntry `json:"activeEntry,omitempty"`
	ElapsedTime    string                `json:"elapsedTime"`
	ClockState     timeclock.State       `json:"clockState"`
}

func (t *Tracker) State() State {
	signal := t.poller.Signal()
	t.mu.Lock()
	dismissed := t.dismissed
	t.mu.Unlock()
	return State{
		UpcomingShift:  signal.Upcoming,
		ShowAlert:      signal.ShowAlert,
		AlertShift:     signal.AlertShift,
		DismissedShift: dismissed,
		ActiveEntry:    t.machine.Current(),
		ElapsedTime:    t.machine.ElapsedFormatted(),
		ClockState:     t.machine.State(),
	}
}

// CheckUpcomingShifts runs one poll cycle synchronously, outside the timer
// cadence. Safe to overlap with the scheduled cycles.
func (t *Tracker) CheckUpcomingShifts(ctx context.Context) {
	t.poller.Check(ctx)
}

// Activate restores persisted device state and acquires the polling timer.
// Called when the observing UI mounts. ctx scopes the restore reads; pollCtx
// scopes the timer and must outlive the call, so a request-bound context
// cannot tear the poll loop down the moment its request finishes.
func (t *Tracker) Activate(ctx, pollCtx context.Context) error {
	// Adopt an open session left over from a previous page load.
	entry, err := t.session.Refresh(ctx)
	if err != nil {
		// Degrade: the poller retries on its own cadence.
		log.Printf("tracker activate: open entry lookup failed: %v", err)
	} else if entry != nil {
		t.machine.Adopt(*entry)
	}

	// Restore the dismissed-shift banner only while the snapshot is still
	// inside its validity window; purge it otherwise.
	snap, found, err := t.notifyStore.LoadDismissed(ctx)
	if err != nil {
		log.Printf("tracker activate: dismissed snapshot load failed: %v", err)
	} else if found {
		if snap.Valid(t.now(), t.notifyTTL) {
			shift := snap.Shift
			t.mu.Lock()
			t.dismissed = &shift
			t.mu.Unlock()
		} else if err := t.notifyStore.ClearDismissed(ctx); err != nil {
			log.Printf("tracker activate: dismissed snapshot purge failed: %v", err)
		}
	}

	t.poller.Start(pollCtx)
	return nil
}

// Deactivate releases the polling timer. Called when the observing UI
// unmounts; no timers survive it.
func (t *Tracker) Deactivate() {
	t.poller.Stop()
}

// StartShift clocks the employee in on the given shift (or on the currently
// signalled shift when shiftID is empty). On success every pending signal
// and the dismissal snapshot are cleared.
func (t *Tracker) StartShift(ctx context.Context, shiftID string) (model.TimeClockEntry, error) {
	if shiftID == "" {
		signal := t.poller.Signal()
		switch {
		case signal.AlertShift != nil:
			shiftID = signal.AlertShift.ID
		case signal.Upcoming != nil:
			shiftID = signal.Upcoming.ID
		default:
			return model.TimeClockEntry{}, timeclock.ErrInvalidTransition
		}
	}

	entry, err := t.machine.ClockIn(ctx, shiftID, t.employeeID)
	if errors.Is(err, model.ErrOpenEntryExists) {
		// Another device won the race; reconcile local state with the store.
		if open, refreshErr := t.session.Refresh(ctx); refreshErr == nil && open != nil {
			t.machine.Adopt(*open)
		}
		t.poller.Clear()
		return model.TimeClockEntry{}, err
	}
	if err != nil {
		return model.TimeClockEntry{}, err
	}

	t.session.Set(entry)
	t.poller.Clear()
	t.mu.Lock()
	t.dismissed = nil
	t.mu.Unlock()
	if err := t.notifyStore.ClearDismissed(ctx); err != nil {
		log.Printf("start shift: dismissed snapshot clear failed: %v", err)
	}
	return entry, nil
}

// DismissAlert records the dismissal key so the alert never re-fires for
// this shift, snapshots the shift so a reload can restore the banner, and
// drops the blocking prompt.
func (t *Tracker) DismissAlert(ctx context.Context) {
	signal := t.poller.Signal()
	shift := signal.AlertShift
	if shift == nil {
		shift = signal.Upcoming
	}
	if shift == nil {
		return
	}
	if err := t.notifyStore.RecordShown(ctx, notify.DismissedKey(shift.ID)); err != nil {
		log.Printf("dismiss alert: dedup record failed: %v", err)
	}
	snap := notify.Snapshot{Shift: *shift, DismissedAt: t.now()}
	if err := t.notifyStore.SaveDismissed(ctx, snap); err != nil {
		log.Printf("dismiss alert: snapshot save failed: %v", err)
	}
	t.mu.Lock()
	t.dismissed = shift
	t.mu.Unlock()
	t.poller.ClearAlert()
}

func (t *Tracker) StartBreak(ctx context.Context) error {
	return t.machine.StartBreak(ctx)
}

func (t *Tracker) EndBreak(ctx context.Context) error {
	return t.machine.EndBreak(ctx)
}

// ClockOut closes the active session and releases the clocked-in state so
// the poller may prompt for the next shift.
func (t *Tracker) ClockOut(ctx context.Context) (model.TimeClockEntry, error) {
	closed, err := t.machine.ClockOut(ctx)
	if err != nil {
		return model.TimeClockEntry{}, err
	}
	t.session.Clear()
	return closed, nil
}
