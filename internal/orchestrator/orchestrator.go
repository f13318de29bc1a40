package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/hivemind/internal/agent"
	"github.com/ShayCichocki/hivemind/internal/planner"
	"github.com/ShayCichocki/hivemind/internal/report"
	"github.com/ShayCichocki/hivemind/internal/state"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

// Orchestrator owns the lifecycle of runs: plan, materialize, execute,
// synthesize. One Orchestrator may execute many runs, one at a time or
// concurrently; events from all of them share one channel.
type Orchestrator struct {
	store     state.Store
	planner   *planner.Builder
	executor  *PhaseExecutor
	assembler *ContextAssembler
	emitter   *EventEmitter
	logger    *slog.Logger
	opts      orchestratorOptions
}

// New creates an Orchestrator over store, planning with b and executing
// tasks with exec.
func New(store state.Store, b *planner.Builder, exec agent.Executor, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	emitter := NewEventEmitter(o.eventBuffer, o.logger)
	assembler := NewContextAssembler(store, o.maxContext)

	return &Orchestrator{
		store:     store,
		planner:   b,
		executor:  NewPhaseExecutor(store, exec, assembler, o.timeout, emitter, o.logger),
		assembler: assembler,
		emitter:   emitter,
		logger:    o.logger,
		opts:      o,
	}
}

// Events returns the event channel. It is closed by Close.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// DroppedEvents returns how many events were dropped on a full channel.
func (o *Orchestrator) DroppedEvents() uint64 {
	return o.emitter.DroppedCount()
}

// Close closes the event channel. The store is owned by the caller.
func (o *Orchestrator) Close() {
	o.emitter.Close()
}

// Plan builds the plan Run would execute for text without persisting it.
func (o *Orchestrator) Plan(text string) (*models.ExecutionPlan, error) {
	tools, err := o.availableTools()
	if err != nil {
		return nil, err
	}
	return o.planner.Build(text, tools), nil
}

// Run executes text end to end and returns the final run record. A run
// that completes with failed tasks returns a nil error; planning,
// persistence and cancellation failures mark the run failed and are
// returned as *RunError alongside the run.
func (o *Orchestrator) Run(ctx context.Context, text string) (*models.Run, error) {
	run := &models.Run{
		ID:        uuid.New().String(),
		TaskText:  text,
		Status:    models.RunStatusPending,
		StartedAt: time.Now().UTC(),
		Metadata: map[string]any{
			"timeout_seconds":     o.executor.timeout.Seconds(),
			"max_context_entries": o.assembler.MaxEntries(),
		},
	}
	if err := o.store.CreateRun(run); err != nil {
		return nil, persistenceErr("create run", err)
	}

	log := o.logger.With("run_id", run.ID)
	log.Info("run started", "task", truncate(text, 120))
	o.emitter.Emit(Event{Type: EventRunStarted, RunID: run.ID, Message: truncate(text, 120)})

	if err := o.setStatus(run, models.RunStatusPlanning); err != nil {
		return o.fail(run, err)
	}

	plan, err := o.Plan(text)
	if err != nil {
		return o.fail(run, err)
	}
	planDoc, err := models.NewDocument(plan)
	if err != nil {
		return o.fail(run, &RunError{Kind: ErrPlanning, Msg: "encode plan", Err: err})
	}
	if err := o.store.UpdateRun(run.ID, state.RunPatch{Plan: planDoc}); err != nil {
		return o.fail(run, persistenceErr("store plan", err))
	}
	run.Plan = planDoc
	log.Info("plan built", "phases", len(plan.Phases), "tasks", plan.TaskCount(), "strategy", plan.Strategy)

	tg, err := Materialize(ctx, o.store, run.ID, plan)
	if err != nil {
		return o.fail(run, err)
	}

	if err := o.setStatus(run, models.RunStatusRunning); err != nil {
		return o.fail(run, err)
	}

	if err := o.executor.Execute(ctx, run.ID, plan, tg); err != nil {
		return o.fail(run, err)
	}

	tasks, err := o.store.ListTasks(run.ID)
	if err != nil {
		return o.fail(run, persistenceErr("list tasks", err))
	}
	entries, err := o.store.QueryEntries(run.ID, state.EntryFilter{})
	if err != nil {
		return o.fail(run, persistenceErr("list entries", err))
	}

	succeeded, failed, total := report.Counts(tasks)
	result, err := models.NewDocument(models.RunResult{
		Report:    report.Synthesize(tasks, entries),
		Succeeded: succeeded,
		Failed:    failed,
		Total:     total,
	})
	if err != nil {
		return o.fail(run, persistenceErr("encode result", err))
	}

	completed := time.Now().UTC()
	elapsed := completed.Sub(run.StartedAt)
	status := models.RunStatusCompleted
	if err := o.store.UpdateRun(run.ID, state.RunPatch{
		Status:      &status,
		Result:      result,
		CompletedAt: &completed,
		Elapsed:     &elapsed,
	}); err != nil {
		return o.fail(run, persistenceErr("store result", err))
	}
	run.Status = status
	run.Result = result
	run.CompletedAt = &completed
	run.Elapsed = elapsed

	log.Info("run completed", "succeeded", succeeded, "failed", failed, "total", total, "elapsed", elapsed)
	o.emitter.Emit(Event{Type: EventRunCompleted, RunID: run.ID, Duration: elapsed,
		Message: fmt.Sprintf("%d/%d tasks succeeded", succeeded, total)})
	return run, nil
}

func (o *Orchestrator) setStatus(run *models.Run, status models.RunStatus) error {
	if err := o.store.UpdateRun(run.ID, state.RunPatch{Status: &status}); err != nil {
		return persistenceErr(fmt.Sprintf("set run status %s", status), err)
	}
	run.Status = status
	return nil
}

// fail records cause on the run. A store error while doing so is logged;
// cause is still returned.
func (o *Orchestrator) fail(run *models.Run, cause error) (*models.Run, error) {
	completed := time.Now().UTC()
	elapsed := completed.Sub(run.StartedAt)
	status := models.RunStatusFailed
	msg := cause.Error()

	if err := o.store.UpdateRun(run.ID, state.RunPatch{
		Status:      &status,
		CompletedAt: &completed,
		Elapsed:     &elapsed,
		Error:       &msg,
	}); err != nil {
		o.logger.Error("record run failure", "run_id", run.ID, "error", err)
	}
	run.Status = status
	run.CompletedAt = &completed
	run.Elapsed = elapsed
	run.Error = msg

	o.logger.Error("run failed", "run_id", run.ID, "error", cause)
	o.emitter.Emit(Event{Type: EventRunFailed, RunID: run.ID, Error: msg, Duration: elapsed})
	return run, cause
}

func (o *Orchestrator) availableTools() ([]string, error) {
	if o.opts.toolsSet {
		return o.opts.availableTools, nil
	}
	tools, err := o.store.ListTools()
	if err != nil {
		return nil, persistenceErr("list tools", err)
	}
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
