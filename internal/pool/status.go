package pool

import (
	"sync"
	"time"
)

// SlotStatus is what one worker slot is doing right now.
type SlotStatus struct {
	State string // "idle", or a Classify state
	Path  string
	Since time.Time
}

// Counts aggregates outcomes across the run.
type Counts struct {
	Success int64
	Failed  int64
	Skipped int64
	Hung    int64
}

// Board is the shared view of slot activity and outcome totals, read by
// the progress display while slot goroutines update it.
type Board struct {
	mu     sync.Mutex
	slots  []SlotStatus
	counts Counts
}

func NewBoard(slots int) *Board {
	b := &Board{slots: make([]SlotStatus, slots)}
	for i := range b.slots {
		b.slots[i].State = "idle"
	}
	return b
}

func (b *Board) SetProcessing(slot int, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[slot] = SlotStatus{State: StateProcessing, Path: path, Since: time.Now()}
}

// SetState updates only the state, keeping the current path and start time.
func (b *Board) SetState(slot int, state string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[slot].State = state
}

func (b *Board) SetIdle(slot int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[slot] = SlotStatus{State: "idle"}
}

// RecordOutcome bumps the counter for one finished task.
func (b *Board) RecordOutcome(status string, hung bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hung {
		b.counts.Hung++
		b.counts.Failed++
		return
	}
	switch status {
	case "success":
		b.counts.Success++
	case "skipped":
		b.counts.Skipped++
	default:
		b.counts.Failed++
	}
}

// Snapshot copies the current slot states and counts.
func (b *Board) Snapshot() ([]SlotStatus, Counts) {
	b.mu.Lock()
	defer b.mu.Unlock()
	slots := make([]SlotStatus, len(b.slots))
	copy(slots, b.slots)
	return slots, b.counts
}
