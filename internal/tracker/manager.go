package tracker

import (
	"context"
	"sync"

	"shiftly/timeclock/internal/notify"
)

// NotifyFactory builds the device-local notification store for one
// employee+device pair.
type NotifyFactory func(employeeID, deviceID string) notify.Store

// managedTracker is a map slot published before activation finishes; ready
// closes once Activate has run, so a concurrent acquirer of the same pair
// waits for a fully restored tracker instead of a half-initialized one.
type managedTracker struct {
	tracker *Tracker
	ready   chan struct{}
	err     error
}

// Manager hands out one tracker per employee+device and owns their
// lifecycles: Acquire activates, Release deactivates and forgets. Polling
// timers run on the manager's base context so they outlive the request that
// created them.
type Manager struct {
	baseCtx context.Context
	backend Backend
	factory NotifyFactory
	opts    Options

	mu       sync.Mutex
	trackers map[string]*managedTracker
}

func NewManager(ctx context.Context, backend Backend, factory NotifyFactory, opts Options) *Manager {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Manager{
		baseCtx:  ctx,
		backend:  backend,
		factory:  factory,
		opts:     opts,
		trackers: make(map[string]*managedTracker),
	}
}

func trackerKey(employeeID, deviceID string) string {
	return employeeID + ":" + deviceID
}

// Acquire returns the tracker for the pair, creating and activating it on
// first use. ctx scopes only the activation reads; the polling timer starts
// on the manager's base context. A concurrent Acquire for the same pair
// blocks until the first caller's activation has finished.
func (m *Manager) Acquire(ctx context.Context, employeeID, deviceID string) (*Tracker, error) {
	key := trackerKey(employeeID, deviceID)
	m.mu.Lock()
	if existing, ok := m.trackers[key]; ok {
		m.mu.Unlock()
		<-existing.ready
		if existing.err != nil {
			return nil, existing.err
		}
		return existing.tracker, nil
	}
	mt := &managedTracker{
		tracker: New(m.backend, m.factory(employeeID, deviceID), employeeID, m.opts),
		ready:   make(chan struct{}),
	}
	m.trackers[key] = mt
	m.mu.Unlock()

	mt.err = mt.tracker.Activate(ctx, m.baseCtx)
	close(mt.ready)
	if mt.err != nil {
		m.Release(employeeID, deviceID)
		return nil, mt.err
	}
	return mt.tracker, nil
}

// Get returns an already-acquired tracker, nil when the device never
// activated one or activation has not finished yet.
func (m *Manager) Get(employeeID, deviceID string) *Tracker {
	m.mu.Lock()
	mt := m.trackers[trackerKey(employeeID, deviceID)]
	m.mu.Unlock()
	if mt == nil {
		return nil
	}
	select {
	case <-mt.ready:
		if mt.err != nil {
			return nil
		}
		return mt.tracker
	default:
		return nil
	}
}

// Release stops the tracker's poller and drops it. Safe to call for a pair
// that was never acquired. Waits for an in-flight activation first so the
// timer cannot be acquired after the teardown.
func (m *Manager) Release(employeeID, deviceID string) {
	m.mu.Lock()
	key := trackerKey(employeeID, deviceID)
	mt := m.trackers[key]
	delete(m.trackers, key)
	m.mu.Unlock()
	if mt != nil {
		<-mt.ready
		mt.tracker.Deactivate()
	}
}

// Shutdown releases every live tracker; called on server teardown so no
// polling timer dangles.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	trackers := make([]*managedTracker, 0, len(m.trackers))
	for _, mt := range m.trackers {
		trackers = append(trackers, mt)
	}
	m.trackers = make(map[string]*managedTracker)
	m.mu.Unlock()
	for _, mt := range trackers {
		<-mt.ready
		mt.tracker.Deactivate()
	}
}
