// Package poller periodically evaluates an employee's day schedule against
// the clock to decide when a "start your shift" prompt may be surfaced, and
// guarantees the blocking alert fires at most once per shift per day.
package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"shiftly/timeclock/internal/model"
	"shiftly/timeclock/internal/notify"
)

var (
	pollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeclock_poll_cycles_total",
		Help: "Shift poller cycles executed.",
	})
	pollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeclock_poll_failures_total",
		Help: "Poller cycles degraded by a failed store read.",
	})
	alertsFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeclock_shift_alerts_total",
		Help: "One-time shift alerts fired.",
	})
)

type ShiftSource interface {
	ListShiftsForEmployeeOnDate(ctx context.Context, employeeID string, day time.Time) ([]model.Shift, error)
}

// Session is the clock-session view the poller consults before classifying
// anything: an open entry suppresses every signal.
type Session interface {
	Refresh(ctx context.Context) (*model.TimeClockEntry, error)
}

// DedupLog is the persisted shown-key log (notify.Store satisfies it).
type DedupLog interface {
	HasBeenShown(ctx context.Context, key string) (bool, error)
	RecordShown(ctx context.Context, key string) error
}

// Signal is what the poller exposes to the UI: the shift driving the
// persistent banner and, at most once per shift per day, the blocking alert.
type Signal struct {
	Upcoming   *model.Shift
	ShowAlert  bool
	AlertShift *model.Shift
}

type Config struct {
	// Interval between cycles.
	Interval time.Duration
	// Lead is the upper bound before start at which a shift is actionable.
	Lead time.Duration
	// Grace keeps the banner eligible this long after the start has passed.
	Grace time.Duration
}

// Poller is a cancellable scheduled task: Start acquires the timer, Stop
// releases it. Cycles are also runnable directly via Check, which never
// panics or returns an error; failures degrade to an empty signal and the
// next tick retries. Cycles never overlap: a direct Check serializes with
// the scheduled loop, so the de-dup consult-and-record stays atomic.
type Poller struct {
	cfg        Config
	shifts     ShiftSource
	session    Session
	dedup      DedupLog
	employeeID string
	now        func() time.Time

	// runMu spans a whole cycle; mu only guards the published signal.
	runMu sync.Mutex

	mu     sync.Mutex
	signal Signal
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, shifts ShiftSource, session Session, dedup DedupLog, employeeID string, now func() time.Time) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 45 * time.Second
	}
	if cfg.Lead <= 0 {
		cfg.Lead = 5 * time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Poller{
		cfg:        cfg,
		shifts:     shifts,
		session:    session,
		dedup:      dedup,
		employeeID: employeeID,
		now:        now,
	}
}

func (p *Poller) Signal() Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signal
}

// Start launches the polling loop. It runs one cycle immediately so a page
// load does not wait a full interval for banner state. Calling Start on a
// running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()
		p.Check(loopCtx)
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				p.Check(loopCtx)
			}
		}
	}()
}

// Stop tears the timer down and waits for the in-flight cycle, so no cycle
// outlives the owning tracker.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Check runs one poll cycle. Concurrent calls run one at a time.
func (p *Poller) Check(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	pollCycles.Inc()

	// Consult the clock session first: a clocked-in employee is never
	// prompted about a different shift.
	entry, err := p.session.Refresh(ctx)
	if err != nil {
		pollFailures.Inc()
		log.Printf("shift poll: open entry lookup failed: %v", err)
		p.update(nil, false)
		return
	}
	if entry != nil {
		p.update(nil, false)
		return
	}

	now := p.now()
	shifts, err := p.shifts.ListShiftsForEmployeeOnDate(ctx, p.employeeID, now)
	if err != nil {
		// A failed fetch reads as "no shifts" for this cycle; the next tick
		// retries. Never surfaced to the user.
		pollFailures.Inc()
		log.Printf("shift poll: shift fetch failed: %v", err)
		p.update(nil, false)
		return
	}

	var matched *model.Shift
	fired := false
	for i := range shifts {
		shift := shifts[i]
		untilStart := shift.StartTime.Sub(now)
		if untilStart > p.cfg.Lead {
			// Shifts are in chronological order; everything later is
			// further out still.
			break
		}
		if untilStart < -p.cfg.Grace {
			continue
		}
		matched = &shift
		if untilStart >= 0 {
			fired = p.maybeFireAlert(ctx, shift.ID, now)
		}
		break
	}
	p.update(matched, fired)
}

// maybeFireAlert consults the de-duplication log and, when the shift has not
// been alerted today nor dismissed, records the shown key immediately so a
// re-entrant cycle cannot fire twice.
func (p *Poller) maybeFireAlert(ctx context.Context, shiftID string, now time.Time) bool {
	shownKey := notify.ShownKey(shiftID, now)
	shown, err := p.dedup.HasBeenShown(ctx, shownKey)
	if err != nil {
		log.Printf("shift poll: dedup lookup failed: %v", err)
		return false
	}
	if shown {
		return false
	}
	dismissed, err := p.dedup.HasBeenShown(ctx, notify.DismissedKey(shiftID))
	if err != nil {
		log.Printf("shift poll: dedup lookup failed: %v", err)
		return false
	}
	if dismissed {
		return false
	}
	if err := p.dedup.RecordShown(ctx, shownKey); err != nil {
		log.Printf("shift poll: dedup record failed: %v", err)
		return false
	}
	alertsFired.Inc()
	return true
}

func (p *Poller) update(matched *model.Shift, fired bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if matched == nil {
		p.signal = Signal{}
		return
	}
	// The alert stays up across cycles until the user acts on it, as long as
	// the same shift is still the actionable one.
	keepAlert := p.signal.ShowAlert && p.signal.AlertShift != nil && p.signal.AlertShift.ID == matched.ID
	signal := Signal{Upcoming: matched}
	if fired || keepAlert {
		signal.ShowAlert = true
		signal.AlertShift = matched
	}
	p.signal = signal
}

// ClearAlert drops the blocking alert while leaving the banner shift alone.
// Called when the user dismisses the prompt.
func (p *Poller) ClearAlert() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signal.ShowAlert = false
	p.signal.AlertShift = nil
}

// Clear drops the whole signal, e.g. right after a successful clock-in.
func (p *Poller) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signal = Signal{}
}
