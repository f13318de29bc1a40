package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/hivemind/internal/agent"
	"github.com/ShayCichocki/hivemind/internal/planner"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

func newTestBuilder(t *testing.T) *planner.Builder {
	t.Helper()
	b, err := planner.New(planner.DefaultConfig())
	if err != nil {
		t.Fatalf("planner.New failed: %v", err)
	}
	return b
}

func TestOrchestrator_Run(t *testing.T) {
	db := setupTestDB(t)
	orch := New(db, newTestBuilder(t), agent.DryRunExecutor{},
		WithAvailableTools([]string{"read_file", "write_file", "shell"}),
		WithTimeout(5*time.Second),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	defer orch.Close()

	run, err := orch.Run(context.Background(), "Build the login handler, test it and review the result")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("Status = %q, want completed", run.Status)
	}

	stored, err := db.GetRun(run.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetRun = %v, %v", stored, err)
	}
	if stored.Status != models.RunStatusCompleted || stored.CompletedAt == nil || stored.Error != "" {
		t.Errorf("stored run = %+v", stored)
	}

	var plan models.ExecutionPlan
	if err := stored.Plan.Decode(&plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if got := strings.Join(plan.Roles(), ","); got != "implementer,reviewer,synthesizer" {
		t.Errorf("roles = %s", got)
	}

	var result models.RunResult
	if err := stored.Result.Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Succeeded != 3 || result.Failed != 0 || result.Total != 3 {
		t.Errorf("result counts = %+v", result)
	}
	if !strings.Contains(result.Report, "3/3 tasks succeeded") {
		t.Errorf("report = %s", result.Report)
	}

	// The reviewer sees the implementer's entry, the synthesizer the reviewer's.
	tasks, err := db.ListTasks(run.ID)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	var reviewerData struct {
		Context []string `json:"context"`
	}
	if err := tasks[1].Result.Decode(&reviewerData); err != nil {
		t.Fatalf("decode reviewer result: %v", err)
	}
	if len(reviewerData.Context) != 1 || reviewerData.Context[0] != "implementer:summary" {
		t.Errorf("reviewer context = %v", reviewerData.Context)
	}

	var types []EventType
	for _, ev := range drain(orch.Events()) {
		if ev.RunID != run.ID {
			t.Errorf("event for run %q", ev.RunID)
		}
		types = append(types, ev.Type)
	}
	if len(types) == 0 || types[0] != EventRunStarted || types[len(types)-1] != EventRunCompleted {
		t.Errorf("events = %v", types)
	}
}

func TestOrchestrator_CompletedWithFailedTasks(t *testing.T) {
	db := setupTestDB(t)
	exec := agent.Func(func(ctx context.Context, req *agent.Request) (*agent.Response, error) {
		if req.Role == "reviewer" {
			return &agent.Response{Success: false, Error: "found blocking issues"}, nil
		}
		return &agent.Response{Success: true, Confidence: 0.8}, nil
	})
	orch := New(db, newTestBuilder(t), exec, WithAvailableTools(nil))
	defer orch.Close()

	run, err := orch.Run(context.Background(), "Implement the parser and review it")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("Status = %q, want completed", run.Status)
	}

	var result models.RunResult
	if err := run.Result.Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Failed != 1 || result.Succeeded != 2 {
		t.Errorf("result = %+v", result)
	}
	if !strings.Contains(result.Report, "- reviewer: found blocking issues") {
		t.Errorf("report = %s", result.Report)
	}
}

func TestOrchestrator_PersistenceFailureFailsRun(t *testing.T) {
	db := setupTestDB(t)
	store := &flakyStore{DB: db, failCreateTask: true}
	orch := New(store, newTestBuilder(t), agent.DryRunExecutor{})
	defer orch.Close()

	run, err := orch.Run(context.Background(), "Research Go logging libraries")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if run == nil || run.Status != models.RunStatusFailed {
		t.Fatalf("run = %+v, want failed", run)
	}

	stored, err := db.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if stored.Status != models.RunStatusFailed || !strings.Contains(stored.Error, "disk full") {
		t.Errorf("stored status=%q error=%q", stored.Status, stored.Error)
	}
	if !stored.Result.IsNull() {
		t.Error("failed run has a result document")
	}
	if stored.Plan.IsNull() {
		t.Error("plan was not persisted before materialization")
	}

	var sawFailed bool
	for _, ev := range drain(orch.Events()) {
		if ev.Type == EventRunFailed {
			sawFailed = true
		}
	}
	if !sawFailed {
		t.Error("no run_failed event")
	}
}

func TestOrchestrator_ToolsFromRegistry(t *testing.T) {
	db := setupTestDB(t)
	for _, name := range []string{"web_fetch", "shell", "web_search"} {
		if err := db.RegisterTool(&models.Tool{Name: name}); err != nil {
			t.Fatalf("RegisterTool failed: %v", err)
		}
	}
	orch := New(db, newTestBuilder(t), agent.DryRunExecutor{})
	defer orch.Close()

	plan, err := orch.Plan("Research the top Go web frameworks and create a comparison report")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(plan.Phases) != 1 || plan.Phases[0].Tasks[0].Role != "researcher" {
		t.Fatalf("plan = %+v", plan)
	}
	if got := strings.Join(plan.Phases[0].Tasks[0].Tools, ","); got != "web_search,web_fetch" {
		t.Errorf("tools = %s, want web_search,web_fetch", got)
	}

	failing := New(&flakyStore{DB: db, failListTools: true}, newTestBuilder(t), agent.DryRunExecutor{})
	defer failing.Close()
	if _, err := failing.Run(context.Background(), "anything"); !errors.Is(err, ErrPersistence) {
		t.Errorf("err = %v, want ErrPersistence", err)
	}
}

func TestEventEmitter(t *testing.T) {
	e := NewEventEmitter(1, nil)
	e.Emit(Event{Type: EventTaskStarted})
	e.Emit(Event{Type: EventTaskCompleted})

	if e.DroppedCount() != 1 {
		t.Errorf("DroppedCount = %d, want 1", e.DroppedCount())
	}
	ev := <-e.Events()
	if ev.Type != EventTaskStarted || ev.Timestamp.IsZero() {
		t.Errorf("event = %+v", ev)
	}

	e.Close()
	e.Close()
	e.Emit(Event{Type: EventRunCompleted})
	if _, ok := <-e.Events(); ok {
		t.Error("channel open after Close")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
