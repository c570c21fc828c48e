package supervisor

import (
	"context"
	"sync"

	"github.com/taskctl/supervisor/internal/domain"
	"github.com/taskctl/supervisor/internal/registry"
)

// slotCoordinator enforces "exactly one running id per slot at a time",
// adapted from a fixed worker pool shape to a per-slot admission table.
type slotCoordinator struct {
	mu    sync.Mutex
	slots map[string]*slotState
}

type slotState struct {
	mu      sync.Mutex
	running *registry.Record
	waiters []*waitEntry
}

type waitEntry struct {
	rec   *registry.Record
	ready chan struct{}
}

func newSlotCoordinator() *slotCoordinator {
	return &slotCoordinator{slots: make(map[string]*slotState)}
}

func (c *slotCoordinator) state(slot string) *slotState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.slots[slot]
	if !ok {
		st = &slotState{}
		c.slots[slot] = st
	}
	return st
}

// acquire admits rec into slot per admission, blocking for Queue/Replace
// until a waiter slot opens or ctx is cancelled. It returns false when the
// task was rejected (DropIfRunning on a busy slot) or ctx ended first.
func (c *slotCoordinator) acquire(ctx context.Context, slot string, rec *registry.Record, admission domain.Admission) bool {
	st := c.state(slot)

	st.mu.Lock()
	if st.running == nil {
		st.running = rec
		st.mu.Unlock()
		return true
	}

	switch admission {
	case domain.AdmissionDropIfRunning:
		st.mu.Unlock()
		return false

	case domain.AdmissionReplace:
		victim := st.running
		entry := &waitEntry{rec: rec, ready: make(chan struct{})}
		st.waiters = append([]*waitEntry{entry}, st.waiters...)
		st.mu.Unlock()

		victim.Cancel(domain.ErrReplaced)
		return c.await(ctx, slot, entry)

	case domain.AdmissionQueue:
		entry := &waitEntry{rec: rec, ready: make(chan struct{})}
		st.waiters = append(st.waiters, entry)
		st.mu.Unlock()
		return c.await(ctx, slot, entry)

	default:
		st.mu.Unlock()
		return false
	}
}

// await blocks until entry is admitted or ctx ends. On ctx cancellation it
// always reconciles slot's state before returning: if entry was already
// promoted to running (a release() landed concurrently with the
// cancellation), abandoning it here would leak that win forever since
// nobody else will call release() on its behalf, so it's released right
// back to the next waiter; otherwise entry is spliced out of the waiter
// queue so a later release() can't hand the slot to an abandoned record.
func (c *slotCoordinator) await(ctx context.Context, slot string, entry *waitEntry) bool {
	select {
	case <-entry.ready:
		return true
	case <-ctx.Done():
		return c.abandon(slot, entry)
	}
}

func (c *slotCoordinator) abandon(slot string, entry *waitEntry) bool {
	st := c.state(slot)

	st.mu.Lock()
	if st.running == entry.rec {
		st.mu.Unlock()
		c.release(slot)
		return false
	}
	for i, w := range st.waiters {
		if w == entry {
			st.waiters = append(st.waiters[:i], st.waiters[i+1:]...)
			break
		}
	}
	st.mu.Unlock()
	return false
}

// release frees slot's running position, admitting the entry at the head of
// the waiter queue (if any; a Replace entry is placed at the head, Queue
// entries at the tail) and waking its acquire call.
func (c *slotCoordinator) release(slot string) {
	st := c.state(slot)

	st.mu.Lock()
	if len(st.waiters) == 0 {
		st.running = nil
		st.mu.Unlock()
		return
	}
	next := st.waiters[0]
	st.waiters = st.waiters[1:]
	st.running = next.rec
	st.mu.Unlock()

	close(next.ready)
}
