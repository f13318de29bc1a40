package orchestrator

import (
	"github.com/ShayCichocki/hivemind/internal/state"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

// DefaultMaxContextEntries caps the entries handed to one task.
const DefaultMaxContextEntries = 20

// ContextAssembler selects the blackboard entries a task receives.
type ContextAssembler struct {
	store      state.EntryStore
	maxEntries int
}

// NewContextAssembler creates an assembler. maxEntries <= 0 selects
// DefaultMaxContextEntries.
func NewContextAssembler(store state.EntryStore, maxEntries int) *ContextAssembler {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxContextEntries
	}
	return &ContextAssembler{store: store, maxEntries: maxEntries}
}

// MaxEntries returns the configured cap.
func (a *ContextAssembler) MaxEntries() int {
	return a.maxEntries
}

// Assemble returns the run's entries sharing a tag with tags, oldest first,
// keeping only the most recent MaxEntries. No tags means no context.
func (a *ContextAssembler) Assemble(runID string, tags []string) ([]models.BlackboardEntry, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	return a.store.QueryEntries(runID, state.EntryFilter{
		Tags:  tags,
		Limit: a.maxEntries,
	})
}
