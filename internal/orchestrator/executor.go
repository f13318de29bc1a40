package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/hivemind/internal/agent"
	"github.com/ShayCichocki/hivemind/internal/state"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

// executorStore is the persistence the phase executor touches.
type executorStore interface {
	state.TaskStore
	state.EntryStore
	state.ArtifactStore
	state.ToolStore
}

// PhaseExecutor runs a materialized plan phase by phase. A phase starts only
// after every task of the previous phase is terminal.
type PhaseExecutor struct {
	store     executorStore
	exec      agent.Executor
	assembler *ContextAssembler
	timeout   time.Duration
	emitter   *EventEmitter
	logger    *slog.Logger
}

// NewPhaseExecutor creates a PhaseExecutor. A nil emitter drops events and
// timeout <= 0 selects agent.DefaultTimeout.
func NewPhaseExecutor(store executorStore, exec agent.Executor, assembler *ContextAssembler, timeout time.Duration, emitter *EventEmitter, logger *slog.Logger) *PhaseExecutor {
	if timeout <= 0 {
		timeout = agent.DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PhaseExecutor{
		store:     store,
		exec:      exec,
		assembler: assembler,
		timeout:   timeout,
		emitter:   emitter,
		logger:    logger,
	}
}

// Execute runs every phase of plan over the tasks in tg. Task failures are
// recorded on the task and never stop execution; only store failures are
// returned from within a phase. Each task runs exactly once. A ctx canceled
// by the caller is honored only between phases: it aborts the run with
// ErrCanceled and is not a task failure. Tasks of later phases stay
// pending.
func (p *PhaseExecutor) Execute(ctx context.Context, runID string, plan *models.ExecutionPlan, tg *TaskGraph) error {
	for i, phase := range plan.Phases {
		if err := ctx.Err(); err != nil {
			return &RunError{Kind: ErrCanceled, Msg: fmt.Sprintf("before phase %q", phase.Name), Err: err}
		}

		tasks := tg.Phases[i]
		p.emit(Event{Type: EventPhaseStarted, RunID: runID, Phase: phase.Name, PhaseIndex: i,
			Message: fmt.Sprintf("%d task(s), parallel=%t", len(tasks), phase.Parallel)})
		p.logger.Info("phase started", "run_id", runID, "phase", phase.Name, "tasks", len(tasks), "parallel", phase.Parallel)

		var err error
		if phase.Parallel && len(tasks) > 1 {
			err = p.runParallel(ctx, runID, i, phase.Name, tasks)
		} else {
			err = p.runSequential(ctx, runID, i, phase.Name, tasks)
		}
		if err != nil {
			return err
		}

		p.emit(Event{Type: EventPhaseCompleted, RunID: runID, Phase: phase.Name, PhaseIndex: i})
		p.logger.Info("phase completed", "run_id", runID, "phase", phase.Name)
	}
	return nil
}

func (p *PhaseExecutor) runParallel(ctx context.Context, runID string, phaseIndex int, phaseName string, tasks []*models.Task) error {
	// A plain Group: one task's store failure must not cancel its siblings.
	var g errgroup.Group
	for _, task := range tasks {
		g.Go(func() error {
			return p.runTask(ctx, runID, phaseIndex, phaseName, task)
		})
	}
	return g.Wait()
}

func (p *PhaseExecutor) runSequential(ctx context.Context, runID string, phaseIndex int, phaseName string, tasks []*models.Task) error {
	for _, task := range tasks {
		if err := p.runTask(ctx, runID, phaseIndex, phaseName, task); err != nil {
			return err
		}
	}
	return nil
}

// runTask drives one task through pending → running → terminal. The
// returned error is always a persistence failure.
func (p *PhaseExecutor) runTask(ctx context.Context, runID string, phaseIndex int, phaseName string, task *models.Task) error {
	start := time.Now().UTC()
	task.Status = models.TaskStatusRunning
	task.StartedAt = &start
	if err := p.store.TransitionTask(task, models.TaskStatusPending); err != nil {
		return persistenceErr("start task "+task.Role, err)
	}
	p.emit(Event{Type: EventTaskStarted, RunID: runID, Phase: phaseName, PhaseIndex: phaseIndex,
		TaskID: task.ID, Role: task.Role})

	entries, err := p.assembler.Assemble(runID, task.ContextTags)
	if err != nil {
		return persistenceErr("assemble context for "+task.Role, err)
	}
	tools, err := p.toolInstructions(task.Tools)
	if err != nil {
		return err
	}

	req := &agent.Request{
		RunID:       runID,
		TaskID:      task.ID,
		Role:        task.Role,
		Description: task.Description,
		Input:       task.Input,
		Context:     toContextEntries(entries),
		Tools:       tools,
	}

	p.logger.Debug("invoking executor", "run_id", runID, "role", task.Role, "context_entries", len(entries), "tools", len(tools))
	resp := agent.Invoke(ctx, p.exec, req, p.timeout)

	if err := p.writeEntries(runID, task, resp.Entries); err != nil {
		return err
	}
	if err := p.saveArtifacts(runID, task, resp.Artifacts); err != nil {
		return err
	}

	done := time.Now().UTC()
	confidence := resp.Confidence
	task.Result = resp.Data
	task.Confidence = &confidence
	task.CompletedAt = &done
	task.Elapsed = done.Sub(start)
	if resp.Success {
		task.Status = models.TaskStatusCompleted
		task.Error = ""
	} else {
		task.Status = models.TaskStatusFailed
		task.Error = resp.Error
	}
	if err := p.store.TransitionTask(task, models.TaskStatusRunning); err != nil {
		return persistenceErr("finish task "+task.Role, err)
	}

	ev := Event{RunID: runID, Phase: phaseName, PhaseIndex: phaseIndex, TaskID: task.ID, Role: task.Role,
		Confidence: confidence, Duration: task.Elapsed}
	if resp.Success {
		ev.Type = EventTaskCompleted
		p.logger.Info("task completed", "run_id", runID, "role", task.Role, "confidence", confidence, "elapsed", task.Elapsed)
	} else {
		ev.Type = EventTaskFailed
		ev.Error = fmt.Errorf("%w: %s", ErrTaskExecution, resp.Error).Error()
		p.logger.Warn("task failed", "run_id", runID, "role", task.Role, "error", resp.Error, "elapsed", task.Elapsed)
	}
	p.emit(ev)
	return nil
}

func (p *PhaseExecutor) toolInstructions(names []string) ([]agent.ToolInstruction, error) {
	out := make([]agent.ToolInstruction, 0, len(names))
	for _, name := range names {
		tool, err := p.store.GetTool(name)
		if err != nil {
			return nil, persistenceErr("look up tool "+name, err)
		}
		ti := agent.ToolInstruction{Name: name}
		if tool != nil {
			ti.Description = tool.Description
			ti.Instructions = tool.Instructions
		}
		out = append(out, ti)
	}
	return out, nil
}

func (p *PhaseExecutor) writeEntries(runID string, task *models.Task, outputs []agent.EntryOutput) error {
	for _, out := range outputs {
		if out.Key == "" {
			p.logger.Warn("dropping entry without key", "run_id", runID, "role", task.Role)
			continue
		}
		entry := &models.BlackboardEntry{
			RunID:     runID,
			Key:       QualifiedKey(task.Role, out.Key),
			Value:     out.Value,
			Author:    task.Role,
			Tags:      withTag(out.Tags, task.Role),
			EntityIDs: out.EntityIDs,
		}
		if t, ok := agent.ParseEventDate(out.EventDate); ok {
			entry.EventDate = &t
		} else if out.EventDate != "" {
			p.logger.Debug("ignoring unparseable event date", "role", task.Role, "key", out.Key, "event_date", out.EventDate)
		}
		if _, err := p.store.WriteEntry(entry); err != nil {
			return persistenceErr("write entry "+entry.Key, err)
		}
	}
	return nil
}

func (p *PhaseExecutor) saveArtifacts(runID string, task *models.Task, outputs []agent.ArtifactOutput) error {
	for i, out := range outputs {
		name := out.Name
		if name == "" {
			name = fmt.Sprintf("%s-artifact-%d", task.Role, i+1)
		}
		art := &models.Artifact{
			RunID:       runID,
			TaskID:      task.ID,
			Name:        name,
			ContentType: out.ContentType,
			Content:     []byte(out.Content),
		}
		if err := p.store.SaveArtifact(art); err != nil {
			return persistenceErr("save artifact "+name, err)
		}
	}
	return nil
}

func (p *PhaseExecutor) emit(ev Event) {
	if p.emitter != nil {
		p.emitter.Emit(ev)
	}
}

// QualifiedKey is the blackboard key for an entry written by role.
func QualifiedKey(role, key string) string {
	return role + ":" + key
}

// withTag returns tags with tag appended unless already present.
func withTag(tags []string, tag string) []string {
	out := make([]string, 0, len(tags)+1)
	seen := make(map[string]bool, len(tags)+1)
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if !seen[tag] {
		out = append(out, tag)
	}
	return out
}

func toContextEntries(entries []models.BlackboardEntry) []agent.ContextEntry {
	out := make([]agent.ContextEntry, len(entries))
	for i, e := range entries {
		out[i] = agent.ContextEntry{Key: e.Key, Value: e.Value, Author: e.Author, Tags: e.Tags}
	}
	return out
}
