package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task has been dispatched to the executor.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the executor reported success.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the executor reported failure, errored or timed out.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true for completed and failed.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition reports whether a task may move from s to next.
// The only legal moves are pending→running and running→{completed,failed}.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusRunning
	case TaskStatusRunning:
		return next.Terminal()
	default:
		return false
	}
}

// Task represents one role-named unit of work inside a run.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// RunID is the run that owns this task.
	RunID string `json:"run_id"`
	// Role is the role name, unique within the run.
	Role string `json:"role"`
	// Description is the instruction handed to the executor.
	Description string `json:"description"`
	// Input is the structured input map from the plan.
	Input map[string]any `json:"input,omitempty"`
	// Dependencies lists resolved task IDs that must complete first.
	Dependencies []string `json:"dependencies"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Result is the opaque payload returned by the executor.
	Result Document `json:"result,omitempty"`
	// Confidence is the executor's self-reported confidence, nil until terminal.
	Confidence *float64 `json:"confidence,omitempty"`
	// CreatedAt is when the task was materialized.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the task entered running.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Elapsed is the wall time between start and completion.
	Elapsed time.Duration `json:"elapsed,omitempty"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty"`
	// RetryCount is reserved; the executor never increments it.
	RetryCount int `json:"retry_count"`

	// PhaseIndex is the index of the phase the task belongs to.
	PhaseIndex int `json:"phase_index"`
	// Position is the task's index within its phase.
	Position int `json:"position"`
	// Tools lists the tool names granted to the task.
	Tools []string `json:"tools,omitempty"`
	// ContextTags selects which blackboard entries the task receives.
	ContextTags []string `json:"context_tags,omitempty"`
}

// IsReady reports whether task is pending and every dependency names a
// completed task of the same run. tasksByID must contain the run's tasks.
func IsReady(task *Task, tasksByID map[string]*Task) bool {
	if task == nil || task.Status != TaskStatusPending {
		return false
	}
	for _, depID := range task.Dependencies {
		dep, ok := tasksByID[depID]
		if !ok || dep.RunID != task.RunID || dep.Status != TaskStatusCompleted {
			return false
		}
	}
	return true
}
