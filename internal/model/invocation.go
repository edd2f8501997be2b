package model

import (
	"time"
)

// TaskName identifies a registered task handler.
type TaskName string

const (
	TaskUpdateMarketData      TaskName = "updateMarketData"
	TaskRunTradingCycle       TaskName = "runTradingCycle"
	TaskGenerateDailyReport   TaskName = "generateDailyReport"
	TaskGenerateWeeklyReport  TaskName = "generateWeeklyReport"
	TaskCleanupHistoricalData TaskName = "cleanupHistoricalData"
	TaskSystemHealthCheck     TaskName = "systemHealthCheck"
)

// Trigger records how an invocation was started.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// OutcomeStatus is the terminal state of one task invocation.
type OutcomeStatus string

const (
	// OutcomeSuccess means the task body ran and every service call it
	// made succeeded.
	OutcomeSuccess OutcomeStatus = "success"

	// OutcomeSkipped means a gate evaluated false and the task body never
	// ran. A skip is a deliberate no-op, not an error.
	OutcomeSkipped OutcomeStatus = "skipped"

	// OutcomeFailure means the task body ran and something went wrong.
	OutcomeFailure OutcomeStatus = "failure"
)

// Invocation is the record of a single task execution. It is produced at
// dispatch, completed by the handler, and retained only in the invocation
// journal; the scheduler itself keeps no history.
type Invocation struct {
	ID         string        `json:"id"`
	Task       TaskName      `json:"task"`
	Trigger    Trigger       `json:"trigger"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Outcome    OutcomeStatus `json:"outcome"`
	Message    string        `json:"message,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Duration is the wall-clock time the invocation took.
func (inv *Invocation) Duration() time.Duration {
	return inv.FinishedAt.Sub(inv.StartedAt)
}
