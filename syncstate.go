package notionrag

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SyncState is the coordinator's lifecycle state.
type SyncState string

const (
	StateIdle      SyncState = "idle"
	StateRunning   SyncState = "running"
	StateCompleted SyncState = "completed"
	StateFailed    SyncState = "failed"
)

// SyncStatus is a snapshot of the sync coordinator.
type SyncStatus struct {
	State      SyncState  `json:"state"`
	RunID      string     `json:"run_id,omitempty"`
	StartedAt  time.Time  `json:"started_at,omitzero"`
	FinishedAt time.Time  `json:"finished_at,omitzero"`
	Stats      *SyncStats `json:"stats,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// syncCoordinator owns the single-flight sync state machine:
// Idle -> Running -> Completed | Failed -> Running -> ...
// begin while Running is rejected, never queued; both the foreground
// and background sync paths write through the same coordinator.
type syncCoordinator struct {
	mu  sync.Mutex
	cur SyncStatus
}

func newSyncCoordinator() *syncCoordinator {
	return &syncCoordinator{cur: SyncStatus{State: StateIdle}}
}

// begin transitions to Running and returns the new run id, or
// ErrSyncInProgress if a run is already in flight.
func (c *syncCoordinator) begin() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur.State == StateRunning {
		return "", ErrSyncInProgress
	}

	runID := uuid.NewString()
	c.cur = SyncStatus{
		State:     StateRunning,
		RunID:     runID,
		StartedAt: time.Now().UTC(),
	}
	return runID, nil
}

// finish records the outcome of the run identified by runID. Outcomes
// of stale runs are dropped.
func (c *syncCoordinator) finish(runID string, stats *SyncStats, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur.RunID != runID {
		return
	}

	c.cur.FinishedAt = time.Now().UTC()
	if err != nil {
		c.cur.State = StateFailed
		c.cur.Error = err.Error()
		return
	}
	c.cur.State = StateCompleted
	c.cur.Stats = stats
}

// status returns a copy of the current state.
func (c *syncCoordinator) status() SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}
