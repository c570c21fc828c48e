// Package registry holds the in-memory task record store: the queryable
// state every driver mutates and every Get/List call reads.
package registry

import (
	"sync"
	"time"

	"github.com/taskctl/supervisor/internal/domain"
)

// Record is the mutable, internal state of one submitted task. Every
// mutation acquires the record's own mutex rather than a registry-wide
// lock, so concurrent drivers never block on each other's slots.
type Record struct {
	mu sync.Mutex

	id        domain.TaskID
	spec      domain.TaskSpec
	status    domain.Status
	attempt   int
	createdAt time.Time
	updatedAt time.Time
	lastError string

	// completedEvent is closed exactly once, when the record first reaches
	// a terminal status, to wake anyone awaiting completion (cancellation,
	// Replace displacement, tests).
	completedEvent chan struct{}
	completedOnce  sync.Once

	// cancelFn fires the current cycle's context.CancelCauseFunc, covering
	// admission waits, attempts and backoff sleeps alike; nil until the
	// driver first attaches a cycle.
	cancelFn func(reason error)
}

// NewRecord creates a fresh Pending record for spec.
func NewRecord(id domain.TaskID, spec domain.TaskSpec, now time.Time) *Record {
	return &Record{
		id:             id,
		spec:           spec,
		status:         domain.StatusPending,
		createdAt:      now,
		updatedAt:      now,
		completedEvent: make(chan struct{}),
	}
}

// ID returns the record's identifier. Immutable, safe without locking.
func (r *Record) ID() domain.TaskID { return r.id }

// Spec returns the record's immutable TaskSpec. Safe without locking.
func (r *Record) Spec() domain.TaskSpec { return r.spec }

// Snapshot returns a point-in-time, race-free copy of the record's external
// view.
func (r *Record) Snapshot() domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.Snapshot{
		ID:        r.id,
		Slot:      r.spec.Slot,
		Status:    r.status,
		Attempt:   r.attempt,
		CreatedAt: r.createdAt,
		UpdatedAt: r.updatedAt,
		Error:     r.lastError,
	}
}

// Status returns the current status under the record's lock.
func (r *Record) Status() domain.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Transition moves the record to next, enforcing the Pending < Running <
// terminal lattice. Returns false and leaves the record
// untouched if the transition would move backward.
func (r *Record) Transition(next domain.Status, attempt int, errMsg string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.status.Advances(next) {
		return false
	}

	r.status = next
	r.attempt = attempt
	r.lastError = errMsg
	r.updatedAt = now

	if next.Terminal() {
		r.completedOnce.Do(func() { close(r.completedEvent) })
	}
	return true
}

// Done returns a channel closed the instant the record first becomes
// terminal, for cancellation and Replace-displacement callers to await.
func (r *Record) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completedEvent
}

// SetCancelFn attaches the cancellation callback for the record's current
// attempt cycle. The driver calls this once per cycle, before slot admission;
// the callback is replaced by the next cycle's and is never cleared.
func (r *Record) SetCancelFn(fn func(reason error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelFn = fn
}

// Cancel fires the record's current cancellation callback with reason. It is
// a no-op returning false only if the record has never been attached to a
// live cycle. A terminal status (e.g. Failed mid-backoff, ahead of a retry)
// does not by itself block cancellation: the cycle the cancel function
// belongs to may still be running attempts or waiting out a backoff sleep,
// and firing it ends that cycle immediately. Once a record's cycle has
// truly finished, its cancel function's context is already cancelled, so
// calling it again is a harmless no-op — cancel is idempotent either way.
func (r *Record) Cancel(reason error) bool {
	r.mu.Lock()
	fn := r.cancelFn
	r.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(reason)
	return true
}
