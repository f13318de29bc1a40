package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/hivemind/internal/graph"
	"github.com/ShayCichocki/hivemind/internal/state"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

// TaskGraph is a materialized plan: persisted tasks grouped by phase.
type TaskGraph struct {
	// Phases holds the tasks of each plan phase in position order.
	Phases [][]*models.Task
	// ByRole maps role name to its task.
	ByRole map[string]*models.Task
	// Graph is the validated dependency graph over task ids.
	Graph *graph.DependencyGraph
}

// Tasks returns every task in plan order.
func (g *TaskGraph) Tasks() []*models.Task {
	var out []*models.Task
	for _, phase := range g.Phases {
		out = append(out, phase...)
	}
	return out
}

// Materialize converts plan into pending tasks for runID. Ids are assigned
// to every role first, then dependency role names are resolved against
// roles placed strictly earlier in plan order. Nothing is persisted until
// the whole graph validates.
func Materialize(ctx context.Context, store state.TaskStore, runID string, plan *models.ExecutionPlan) (*TaskGraph, error) {
	if plan == nil || plan.TaskCount() == 0 {
		return nil, planningf("plan has no tasks")
	}

	// Pass one: ids.
	ids := make(map[string]string, plan.TaskCount())
	for _, phase := range plan.Phases {
		for _, pt := range phase.Tasks {
			if pt.Role == "" {
				return nil, planningf("phase %q has a task without a role", phase.Name)
			}
			if _, dup := ids[pt.Role]; dup {
				return nil, planningf("duplicate role %q", pt.Role)
			}
			ids[pt.Role] = uuid.New().String()
		}
	}

	// Pass two: dependencies.
	now := time.Now().UTC()
	placed := make(map[string]bool, len(ids))
	tg := &TaskGraph{
		Phases: make([][]*models.Task, len(plan.Phases)),
		ByRole: make(map[string]*models.Task, len(ids)),
	}
	var all []*models.Task

	for pi, phase := range plan.Phases {
		for pos, pt := range phase.Tasks {
			deps := make([]string, 0, len(pt.Dependencies))
			seen := make(map[string]bool, len(pt.Dependencies))
			for _, dep := range pt.Dependencies {
				if seen[dep] {
					continue
				}
				seen[dep] = true

				switch {
				case dep == pt.Role:
					return nil, planningf("role %q depends on itself", pt.Role)
				case ids[dep] == "":
					return nil, planningf("role %q depends on unknown role %q", pt.Role, dep)
				case !placed[dep]:
					return nil, planningf("role %q depends on %q, which is not placed earlier", pt.Role, dep)
				}
				deps = append(deps, ids[dep])
			}

			task := &models.Task{
				ID:           ids[pt.Role],
				RunID:        runID,
				Role:         pt.Role,
				Description:  pt.Description,
				Input:        pt.Input,
				Dependencies: deps,
				Status:       models.TaskStatusPending,
				CreatedAt:    now,
				PhaseIndex:   pi,
				Position:     pos,
				Tools:        pt.Tools,
				ContextTags:  pt.ContextTags,
			}
			placed[pt.Role] = true
			tg.Phases[pi] = append(tg.Phases[pi], task)
			tg.ByRole[pt.Role] = task
			all = append(all, task)
		}
	}

	tg.Graph = graph.New()
	if err := tg.Graph.Build(all); err != nil {
		if errors.Is(err, graph.ErrCycleDetected) || errors.Is(err, graph.ErrUnknownDependency) {
			return nil, &RunError{Kind: ErrPlanning, Msg: "validate task graph", Err: err}
		}
		return nil, &RunError{Kind: ErrPlanning, Err: err}
	}

	for _, task := range all {
		if err := ctx.Err(); err != nil {
			return nil, &RunError{Kind: ErrCanceled, Err: err}
		}
		if err := store.CreateTask(task); err != nil {
			return nil, persistenceErr("create task "+task.Role, err)
		}
	}
	return tg, nil
}
