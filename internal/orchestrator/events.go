package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a run record was created.
	EventRunStarted EventType = "run_started"
	// EventPhaseStarted indicates a phase began executing.
	EventPhaseStarted EventType = "phase_started"
	// EventPhaseCompleted indicates every task of a phase is terminal.
	EventPhaseCompleted EventType = "phase_completed"
	// EventTaskStarted indicates a task has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventRunCompleted indicates the run finished and a report was stored.
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed indicates the run itself failed.
	EventRunFailed EventType = "run_failed"
)

// Terminal reports whether the event ends a run.
func (t EventType) Terminal() bool {
	return t == EventRunCompleted || t == EventRunFailed
}

// Event represents an event emitted by the orchestrator.
// These events feed the watch TUI and the Redis event feed.
type Event struct {
	// Type is the kind of event.
	Type EventType `json:"type"`
	// RunID is the run the event belongs to.
	RunID string `json:"run_id"`
	// Phase is the phase name, if applicable.
	Phase string `json:"phase,omitempty"`
	// PhaseIndex is the phase position, if applicable.
	PhaseIndex int `json:"phase_index"`
	// TaskID is the ID of the related task, if applicable.
	TaskID string `json:"task_id,omitempty"`
	// Role is the role of the related task, if applicable.
	Role string `json:"role,omitempty"`
	// Message provides additional context about the event.
	Message string `json:"message,omitempty"`
	// Error contains error details for failure events.
	Error string `json:"error,omitempty"`
	// Confidence is the task's confidence on task_completed and task_failed.
	Confidence float64 `json:"confidence,omitempty"`
	// Duration is the task or run elapsed time.
	Duration time.Duration `json:"duration,omitempty"`
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}
