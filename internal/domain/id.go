package domain

import "fmt"

// TaskID is the external identifier of one submitted task, formatted
// "{runner}-{slot}-{seq}" so ids stay legible in logs without a lookup.
type TaskID string

// NewTaskID builds the canonical id for a submission. seq is the registry's
// per-supervisor monotonic counter at insertion time.
func NewTaskID(runner, slot string, seq uint64) TaskID {
	return TaskID(fmt.Sprintf("%s-%s-%d", runner, slot, seq))
}

func (id TaskID) String() string { return string(id) }
