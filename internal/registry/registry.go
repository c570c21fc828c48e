package registry

import (
	"sort"
	"sync"

	"github.com/taskctl/supervisor/internal/clock"
	"github.com/taskctl/supervisor/internal/domain"
)

// Filter narrows List to a slot and/or a status.
type Filter struct {
	Slot   string
	Status domain.Status
}

func (f Filter) matches(s domain.Snapshot) bool {
	if f.Slot != "" && s.Slot != f.Slot {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

// Registry is the in-memory store of every task record this process has
// ever admitted, indexed by id, with a per-slot list for retention eviction
// and a per-supervisor sequence for id generation. It is safe for concurrent use; structural changes
// (insert/remove) hold the registry-wide lock only long enough to update the
// map, never across a record's own mutation.
type Registry struct {
	runnerID string
	clock    clock.Clock

	// maxTerminalPerSlot bounds how many terminal records are retained per
	// slot; 0 means unbounded.
	maxTerminalPerSlot int

	mu     sync.RWMutex
	byID   map[domain.TaskID]*Record
	seq    uint64
	bySlot map[string][]*Record // insertion order, oldest first
}

// New builds an empty Registry. runnerID is embedded in generated ids;
// maxTerminalPerSlot <= 0 disables retention eviction.
func New(runnerID string, c clock.Clock, maxTerminalPerSlot int) *Registry {
	return &Registry{
		runnerID:           runnerID,
		clock:              c,
		maxTerminalPerSlot: maxTerminalPerSlot,
		byID:               make(map[domain.TaskID]*Record),
		bySlot:             make(map[string][]*Record),
	}
}

// Insert creates and stores a new Pending record for spec, returning it.
func (r *Registry) Insert(spec domain.TaskSpec) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	id := domain.NewTaskID(r.runnerID, spec.Slot, r.seq)
	rec := NewRecord(id, spec, r.clock.Now())

	r.byID[id] = rec
	r.bySlot[spec.Slot] = append(r.bySlot[spec.Slot], rec)
	return rec
}

// Get returns the record for id, or (nil, false) if unknown.
func (r *Registry) Get(id domain.TaskID) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	return rec, ok
}

// Remove drops id from the registry entirely (used by retention eviction).
func (r *Registry) Remove(id domain.TaskID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	slot := rec.Spec().Slot
	recs := r.bySlot[slot]
	for i, candidate := range recs {
		if candidate == rec {
			r.bySlot[slot] = append(recs[:i], recs[i+1:]...)
			break
		}
	}
}

// List applies filter, orders results by created_at ascending (ties broken
// by id), and returns the [offset, offset+limit) page alongside the total
// filtered count. The record set is copied under a single read lock and each
// record is snapshotted once, so the count and the page come from the same
// set of snapshots.
func (r *Registry) List(filter Filter, limit, offset int) ([]domain.Snapshot, int) {
	r.mu.RLock()
	records := make([]*Record, 0, len(r.byID))
	for _, rec := range r.byID {
		records = append(records, rec)
	}
	r.mu.RUnlock()

	matched := make([]domain.Snapshot, 0, len(records))
	for _, rec := range records {
		snap := rec.Snapshot()
		if filter.matches(snap) {
			matched = append(matched, snap)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if offset >= total {
		return []domain.Snapshot{}, total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total
}

// EvictTerminal enforces MaxTerminalPerSlot for slot: once the slot's
// terminal record count exceeds the bound, the oldest terminal records are
// removed, always preserving the most recent terminal record. Called by the driver after a record reaches a terminal
// status.
func (r *Registry) EvictTerminal(slot string) {
	if r.maxTerminalPerSlot <= 0 {
		return
	}

	r.mu.Lock()
	recs := append([]*Record(nil), r.bySlot[slot]...)
	r.mu.Unlock()

	var terminal []*Record
	for _, rec := range recs {
		if rec.Status().Terminal() {
			terminal = append(terminal, rec)
		}
	}
	if len(terminal) <= r.maxTerminalPerSlot {
		return
	}

	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].Snapshot().UpdatedAt.Before(terminal[j].Snapshot().UpdatedAt)
	})

	excess := len(terminal) - r.maxTerminalPerSlot
	for _, rec := range terminal[:excess] {
		r.Remove(rec.ID())
	}
}

