package orchestrator

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/hivemind/internal/state"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// createTestRun inserts a running run so tasks and entries can reference it.
func createTestRun(t *testing.T, db *state.DB) string {
	t.Helper()
	run := &models.Run{
		ID:        "run-" + t.Name(),
		TaskText:  "test",
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := db.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	return run.ID
}

// flakyStore fails selected store calls.
type flakyStore struct {
	*state.DB
	failCreateTask bool
	failWriteEntry bool
	failListTools  bool
}

var errDiskFull = errors.New("disk full")

func (s *flakyStore) CreateTask(t *models.Task) error {
	if s.failCreateTask {
		return errDiskFull
	}
	return s.DB.CreateTask(t)
}

func (s *flakyStore) WriteEntry(e *models.BlackboardEntry) (int, error) {
	if s.failWriteEntry {
		return 0, errDiskFull
	}
	return s.DB.WriteEntry(e)
}

func (s *flakyStore) ListTools() ([]models.Tool, error) {
	if s.failListTools {
		return nil, errDiskFull
	}
	return s.DB.ListTools()
}

func plannedPlan(phases ...models.Phase) *models.ExecutionPlan {
	return &models.ExecutionPlan{Phases: phases}
}

func phase(name string, parallel bool, tasks ...models.PlannedTask) models.Phase {
	return models.Phase{Name: name, Parallel: parallel, Tasks: tasks}
}

func planned(role string, deps ...string) models.PlannedTask {
	return models.PlannedTask{
		Role:         role,
		Description:  "do " + role,
		Dependencies: deps,
		ContextTags:  deps,
	}
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}
