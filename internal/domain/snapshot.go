package domain

import "time"

// Snapshot is the read-only external view of a task record returned by
// Get/List. It never aliases the registry's internal state.
type Snapshot struct {
	ID        TaskID
	Slot      string
	Status    Status
	Attempt   int
	CreatedAt time.Time
	UpdatedAt time.Time
	Error     string
}
