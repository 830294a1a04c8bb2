package models

import "time"

// CycleStatus is the terminal status of one sync cycle.
type CycleStatus string

const (
	CycleStatusCompleted CycleStatus = "completed"
	CycleStatusFailed    CycleStatus = "failed"
	CycleStatusSkipped   CycleStatus = "skipped"
)

// LoopState tracks where the sync loop currently is.
type LoopState string

const (
	LoopStateIdle      LoopState = "idle"
	LoopStateRunning   LoopState = "running"
	LoopStateCancelled LoopState = "cancelled"
)

// CycleOutcome summarises one fetch-parse-persist pass.
type CycleOutcome struct {
	ID         string      `json:"id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Status     CycleStatus `json:"status"`
	Attempted  int         `json:"attempted"`
	Persisted  int         `json:"persisted"`
	Error      string      `json:"error,omitempty"`
}

// Duration returns how long the cycle ran.
func (o CycleOutcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// SyncStatus is the snapshot served on the ops status endpoint.
type SyncStatus struct {
	State         LoopState     `json:"state"`
	CyclesRun     uint64        `json:"cycles_run"`
	LastCycle     *CycleOutcome `json:"last_cycle,omitempty"`
	LastSuccessAt *time.Time    `json:"last_success_at,omitempty"`
}
