package planner

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

var allTools = []string{
	"file_read", "file_write", "shell", "web_search", "web_fetch",
	"code_search", "security_scan", "sql_query", "http_request",
	"browser", "test_runner",
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return b
}

func phaseRoles(p models.Phase) []string {
	roles := make([]string, len(p.Tasks))
	for i, task := range p.Tasks {
		roles[i] = task.Role
	}
	return roles
}

func TestBuild_ResearchComparison(t *testing.T) {
	b := newTestBuilder(t)

	plan := b.Build("Research the top Go web frameworks and create a comparison report", []string{"file_read", "web_search"})

	if !reflect.DeepEqual(plan.Domains, []string{"research"}) {
		t.Errorf("Domains = %v, want [research]", plan.Domains)
	}
	if plan.Scope != models.ScopeSmall {
		t.Errorf("Scope = %q, want small", plan.Scope)
	}
	if len(plan.Phases) != 1 {
		t.Fatalf("len(Phases) = %d, want 1: %+v", len(plan.Phases), plan.Phases)
	}
	phase := plan.Phases[0]
	if !reflect.DeepEqual(phaseRoles(phase), []string{"researcher"}) {
		t.Errorf("roles = %v, want [researcher]", phaseRoles(phase))
	}
	if !reflect.DeepEqual(phase.Tasks[0].Tools, []string{"web_search"}) {
		t.Errorf("researcher tools = %v, want [web_search]", phase.Tasks[0].Tools)
	}
	if phase.Parallel {
		t.Error("single-task phase must not be parallel")
	}
	if plan.EstimatedAgents != 1 {
		t.Errorf("EstimatedAgents = %d, want 1", plan.EstimatedAgents)
	}
}

func TestBuild_BuildTestReviewChain(t *testing.T) {
	b := newTestBuilder(t)

	plan := b.Build("Build the export command, test it and review the result", allTools)

	var roles []string
	for _, p := range plan.Phases {
		if len(p.Tasks) != 1 {
			t.Fatalf("phase %s has %d tasks, want 1", p.Name, len(p.Tasks))
		}
		roles = append(roles, p.Tasks[0].Role)
	}
	if !reflect.DeepEqual(roles, []string{"implementer", "reviewer", "synthesizer"}) {
		t.Fatalf("roles = %v, want [implementer reviewer synthesizer]", roles)
	}

	impl, rev, syn := plan.Phases[0].Tasks[0], plan.Phases[1].Tasks[0], plan.Phases[2].Tasks[0]
	if len(impl.Dependencies) != 0 {
		t.Errorf("implementer deps = %v, want none", impl.Dependencies)
	}
	if !reflect.DeepEqual(rev.Dependencies, []string{"implementer"}) {
		t.Errorf("reviewer deps = %v, want [implementer]", rev.Dependencies)
	}
	if !reflect.DeepEqual(syn.Dependencies, []string{"reviewer"}) {
		t.Errorf("synthesizer deps = %v, want [reviewer]", syn.Dependencies)
	}
	if !reflect.DeepEqual(rev.ContextTags, []string{"implementer"}) {
		t.Errorf("reviewer context tags = %v, want [implementer]", rev.ContextTags)
	}
	if !reflect.DeepEqual(syn.Tools, []string{"file_read", "file_write"}) {
		t.Errorf("synthesizer tools = %v, want general whitelist", syn.Tools)
	}
	if !reflect.DeepEqual(rev.Tools, []string{"file_read", "shell", "test_runner"}) {
		t.Errorf("reviewer tools = %v, want testing whitelist", rev.Tools)
	}
}

func TestBuild_NoTriggerFallsBackToExecutor(t *testing.T) {
	b := newTestBuilder(t)

	available := []string{"shell", "file_read", "custom_tool"}
	plan := b.Build("Tidy up the README wording", available)

	if len(plan.Phases) != 1 {
		t.Fatalf("len(Phases) = %d, want 1", len(plan.Phases))
	}
	if plan.Phases[0].Name != PhaseExecution {
		t.Errorf("phase name = %q, want %q", plan.Phases[0].Name, PhaseExecution)
	}
	task := plan.Phases[0].Tasks[0]
	if task.Role != "executor" {
		t.Errorf("role = %q, want executor", task.Role)
	}
	if !reflect.DeepEqual(task.Tools, available) {
		t.Errorf("tools = %v, want every available tool %v", task.Tools, available)
	}
	if !reflect.DeepEqual(plan.Domains, []string{GeneralDomain}) {
		t.Errorf("Domains = %v, want [general]", plan.Domains)
	}
	if plan.Risk != models.RiskLow {
		t.Errorf("Risk = %q, want low", plan.Risk)
	}
}

func TestBuild_Enterprise(t *testing.T) {
	b := newTestBuilder(t)

	plan := b.Build("Design the platform: secure the api, add a database schema and a react frontend", allTools)

	if plan.Scope != models.ScopeEnterprise {
		t.Fatalf("Scope = %q, want enterprise", plan.Scope)
	}
	wantDomains := []string{"security", "database", "api", "frontend"}
	if !reflect.DeepEqual(plan.Domains, wantDomains) {
		t.Fatalf("Domains = %v, want %v", plan.Domains, wantDomains)
	}
	if len(plan.Phases) != 3 {
		t.Fatalf("len(Phases) = %d, want 3", len(plan.Phases))
	}

	analysis, arch, impl := plan.Phases[0], plan.Phases[1], plan.Phases[2]
	if !reflect.DeepEqual(phaseRoles(analysis), []string{"security_analyst", "database_analyst", "api_analyst", "frontend_analyst"}) {
		t.Errorf("analysis roles = %v", phaseRoles(analysis))
	}
	if !analysis.Parallel {
		t.Error("analysis phase should be parallel")
	}
	if arch.Parallel || len(arch.Tasks) != 1 || arch.Tasks[0].Role != "architect" {
		t.Errorf("architecture phase = %+v", arch)
	}
	if !reflect.DeepEqual(arch.Tasks[0].Dependencies, phaseRoles(analysis)) {
		t.Errorf("architect deps = %v, want every analyst", arch.Tasks[0].Dependencies)
	}
	if !impl.Parallel {
		t.Error("implementation phase should be parallel")
	}
	for _, task := range impl.Tasks {
		if !strings.HasSuffix(task.Role, "_engineer") {
			t.Errorf("implementation role %q lacks _engineer suffix", task.Role)
		}
		if !reflect.DeepEqual(task.Dependencies, []string{"architect"}) {
			t.Errorf("%s deps = %v, want [architect]", task.Role, task.Dependencies)
		}
	}
	if !reflect.DeepEqual(impl.Tasks[0].Tools, []string{"code_search", "file_read", "security_scan"}) {
		t.Errorf("security_engineer tools = %v", impl.Tasks[0].Tools)
	}
	if plan.EstimatedAgents != 9 {
		t.Errorf("EstimatedAgents = %d, want 9", plan.EstimatedAgents)
	}
}

func TestBuild_EnterpriseTriggerWithSingleDomain(t *testing.T) {
	b := newTestBuilder(t)

	plan := b.Build("Sketch the enterprise rollout", allTools)

	if plan.Scope != models.ScopeEnterprise {
		t.Fatalf("Scope = %q, want enterprise", plan.Scope)
	}
	if plan.Phases[0].Parallel {
		t.Error("single analyst phase must not be parallel")
	}
	if plan.Phases[0].Tasks[0].Role != "general_analyst" {
		t.Errorf("analyst role = %q, want general_analyst", plan.Phases[0].Tasks[0].Role)
	}
}

func TestBuild_Large(t *testing.T) {
	b := newTestBuilder(t)

	plan := b.Build("Add a backend service with a sql database and tests", allTools)

	if plan.Scope != models.ScopeLarge {
		t.Fatalf("Scope = %q, want large (domains %v)", plan.Scope, plan.Domains)
	}
	var roles []string
	for _, p := range plan.Phases {
		roles = append(roles, phaseRoles(p)...)
	}
	if !reflect.DeepEqual(roles, []string{"researcher", "implementer", "tester"}) {
		t.Fatalf("roles = %v", roles)
	}
	if !reflect.DeepEqual(plan.Phases[2].Tasks[0].Dependencies, []string{"implementer"}) {
		t.Errorf("tester deps = %v", plan.Phases[2].Tasks[0].Dependencies)
	}
	// database ∪ backend ∪ testing, whitelist order, no duplicates.
	want := []string{"file_read", "file_write", "sql_query", "shell", "test_runner"}
	if got := plan.Phases[1].Tasks[0].Tools; !reflect.DeepEqual(got, want) {
		t.Errorf("implementer tools = %v, want %v", got, want)
	}
}

func TestBuild_HighRiskAppendsValidator(t *testing.T) {
	b := newTestBuilder(t)

	plan := b.Build("Drop the legacy tables and fix the importer", allTools)

	if plan.Risk != models.RiskHigh {
		t.Fatalf("Risk = %q, want high", plan.Risk)
	}
	last := plan.Phases[len(plan.Phases)-1]
	if last.Name != PhaseValidation || last.Tasks[0].Role != "validator" {
		t.Fatalf("last phase = %+v, want validator", last)
	}
	prev := plan.Phases[len(plan.Phases)-2]
	if !reflect.DeepEqual(last.Tasks[0].Dependencies, phaseRoles(prev)) {
		t.Errorf("validator deps = %v, want %v", last.Tasks[0].Dependencies, phaseRoles(prev))
	}
}

func TestBuild_HighRiskAfterParallelPhase(t *testing.T) {
	b := newTestBuilder(t)

	plan := b.Build("Purge stale auth tokens from the database, api and frontend caches, then secure the backend", allTools)

	if plan.Scope != models.ScopeEnterprise {
		t.Fatalf("Scope = %q, want enterprise", plan.Scope)
	}
	last := plan.Phases[len(plan.Phases)-1]
	prev := plan.Phases[len(plan.Phases)-2]
	if len(last.Tasks[0].Dependencies) != len(prev.Tasks) {
		t.Errorf("validator deps = %v, want all of %v", last.Tasks[0].Dependencies, phaseRoles(prev))
	}
}

func TestAnalyze_Risk(t *testing.T) {
	b := newTestBuilder(t)

	tests := []struct {
		text string
		want models.Risk
	}{
		{"update the readme", models.RiskLow},
		{"patch the production config", models.RiskMedium},
		{"refund a payment", models.RiskMedium},
		{"delete old branches in production", models.RiskHigh},
		{"truncate the audit log", models.RiskHigh},
		{"productive day", models.RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := b.Analyze(tt.text).Risk; got != tt.want {
				t.Errorf("Risk = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyze_ScopeByLength(t *testing.T) {
	b := newTestBuilder(t)

	tests := []struct {
		name string
		n    int
		want models.Scope
	}{
		{"short", 50, models.ScopeSmall},
		{"medium", 201, models.ScopeMedium},
		{"large", 801, models.ScopeLarge},
		{"enterprise", 2001, models.ScopeEnterprise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("x", tt.n)
			if got := b.Analyze(text).Scope; got != tt.want {
				t.Errorf("Scope = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyze_ScopeCountsRunes(t *testing.T) {
	b := newTestBuilder(t)

	// 150 runes but 300 bytes.
	text := strings.Repeat("é", 150)
	if got := b.Analyze(text).Scope; got != models.ScopeSmall {
		t.Errorf("Scope = %q, want small", got)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	b := newTestBuilder(t)
	text := "Investigate the flaky api tests, fix the handler and review the change"

	first := b.Build(text, allTools)
	for i := 0; i < 5; i++ {
		if got := b.Build(text, allTools); !reflect.DeepEqual(got, first) {
			t.Fatalf("Build is not deterministic:\n%+v\n%+v", first, got)
		}
	}
}

func TestBuild_PlanInvariants(t *testing.T) {
	b := newTestBuilder(t)

	texts := []string{
		"Research the top Go web frameworks and create a comparison report",
		"Build the export command, test it and review the result",
		"Tidy up the README wording",
		"Design the platform: secure the api, add a database schema and a react frontend",
		"Add a backend service with a sql database and tests",
		"Drop the legacy tables and fix the importer",
		strings.Repeat("refactor the deployment pipeline ", 30),
	}

	for _, text := range texts {
		plan := b.Build(text, allTools)
		placed := map[string]bool{}
		for _, phase := range plan.Phases {
			inPhase := map[string]bool{}
			for _, task := range phase.Tasks {
				if placed[task.Role] || inPhase[task.Role] {
					t.Errorf("%q: duplicate role %s", text, task.Role)
				}
				for _, dep := range task.Dependencies {
					if !placed[dep] {
						t.Errorf("%q: %s depends on %s which is not in an earlier phase", text, task.Role, dep)
					}
				}
				for _, tool := range task.Tools {
					if !contains(allTools, tool) {
						t.Errorf("%q: %s granted unavailable tool %s", text, task.Role, tool)
					}
				}
				inPhase[task.Role] = true
			}
			for role := range inPhase {
				placed[role] = true
			}
		}
		if plan.EstimatedAgents != plan.TaskCount() {
			t.Errorf("%q: EstimatedAgents = %d, want %d", text, plan.EstimatedAgents, plan.TaskCount())
		}
		if plan.Strategy == "" {
			t.Errorf("%q: empty strategy", text)
		}
	}
}

func TestIndependent(t *testing.T) {
	tests := []struct {
		name  string
		tasks []models.PlannedTask
		want  bool
	}{
		{"empty", nil, false},
		{"single", []models.PlannedTask{{Role: "a"}}, false},
		{"disjoint", []models.PlannedTask{{Role: "a", Dependencies: []string{"x"}}, {Role: "b", Dependencies: []string{"x"}}}, true},
		{"intra-phase edge", []models.PlannedTask{{Role: "a"}, {Role: "b", Dependencies: []string{"a"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := independent(tt.tasks); got != tt.want {
				t.Errorf("independent() = %v, want %v", got, tt.want)
			}
		})
	}
}
