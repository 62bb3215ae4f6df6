package controller

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats are cumulative totals for a controller.
type Stats struct {
	// Reconciles counts reconcile invocations, successful or not.
	Reconciles uint64
	// Failures counts reconcile invocations that returned an error.
	Failures uint64
	// Requeues counts follow-up requests scheduled by Actions.
	Requeues uint64
}

// KeyStatus reports the most recent reconcile outcome for a single key.
// A key failing persistently shows up here as a growing failure count and
// a last error, while the controller keeps retrying in the background.
type KeyStatus struct {
	ConsecutiveFailures int
	LastError           error
	LastReconcile       time.Time
}

// tracker records per-key outcomes. The outer lock is held only to find
// or insert an entry; each entry carries its own lock so keys do not
// contend with each other.
type tracker struct {
	mu      sync.RWMutex
	entries map[string]*trackerEntry

	reconciles atomic.Uint64
	failures   atomic.Uint64
	requeues   atomic.Uint64
}

type trackerEntry struct {
	mu     sync.Mutex
	status KeyStatus
}

func newTracker() *tracker {
	return &tracker{entries: map[string]*trackerEntry{}}
}

func (t *tracker) entry(key string) *trackerEntry {
	t.mu.RLock()
	e, ok := t.entries[key]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[key]; ok {
		return e
	}
	e = &trackerEntry{}
	t.entries[key] = e
	return e
}

func (t *tracker) observeSuccess(key string) {
	t.reconciles.Add(1)
	e := t.entry(key)
	e.mu.Lock()
	e.status.ConsecutiveFailures = 0
	e.status.LastError = nil
	e.status.LastReconcile = time.Now()
	e.mu.Unlock()
}

func (t *tracker) observeFailure(key string, err error) {
	t.reconciles.Add(1)
	t.failures.Add(1)
	e := t.entry(key)
	e.mu.Lock()
	e.status.ConsecutiveFailures++
	e.status.LastError = err
	e.status.LastReconcile = time.Now()
	e.mu.Unlock()
}

func (t *tracker) observeRequeue() {
	t.requeues.Add(1)
}

// forget drops per-key state once the object is gone.
func (t *tracker) forget(key string) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

func (t *tracker) status(key string) (KeyStatus, bool) {
	t.mu.RLock()
	e, ok := t.entries[key]
	t.mu.RUnlock()
	if !ok {
		return KeyStatus{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, true
}

func (t *tracker) stats() Stats {
	return Stats{
		Reconciles: t.reconciles.Load(),
		Failures:   t.failures.Load(),
		Requeues:   t.requeues.Load(),
	}
}
