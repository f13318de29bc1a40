package state

import (
	"io"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// RunStore handles run bookkeeping.
type RunStore interface {
	CreateRun(r *models.Run) error
	GetRun(id string) (*models.Run, error)
	UpdateRun(id string, p RunPatch) error
	ListRuns(limit int) ([]models.Run, error)
	DeleteRun(id string) (bool, error)
}

// TaskStore handles task persistence and the readiness query.
type TaskStore interface {
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	UpdateTask(t *models.Task) error
	TransitionTask(t *models.Task, from models.TaskStatus) error
	ListTasks(runID string) ([]models.Task, error)
	ReadyTasks(runID string) ([]models.Task, error)
}

// EntryStore handles the versioned blackboard entries.
type EntryStore interface {
	WriteEntry(e *models.BlackboardEntry) (int, error)
	GetEntry(runID, key string) (*models.BlackboardEntry, error)
	QueryEntries(runID string, f EntryFilter) ([]models.BlackboardEntry, error)
}

// ArtifactStore handles append-only task artifacts.
type ArtifactStore interface {
	SaveArtifact(a *models.Artifact) error
	ListArtifacts(runID string) ([]models.Artifact, error)
}

// ToolStore handles the tool instruction registry.
type ToolStore interface {
	RegisterTool(t *models.Tool) error
	GetTool(name string) (*models.Tool, error)
	ListTools() ([]models.Tool, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store is everything the orchestrator needs from persistence. It lets the
// orchestrator run against any backend, and tests inject failures through it.
type Store interface {
	io.Closer
	Migrator
	RunStore
	TaskStore
	EntryStore
	ArtifactStore
	ToolStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ RunStore      = (*DB)(nil)
	_ TaskStore     = (*DB)(nil)
	_ EntryStore    = (*DB)(nil)
	_ ArtifactStore = (*DB)(nil)
	_ ToolStore     = (*DB)(nil)
)
