package planner

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// Phase and role names used by the fixed templates.
const (
	PhaseDomainAnalysis = "domain-analysis"
	PhaseArchitecture   = "architecture"
	PhaseImplementation = "implementation"
	PhaseResearch       = "research"
	PhaseTesting        = "testing"
	PhaseSynthesis      = "synthesis"
	PhaseExecution      = "execution"
	PhaseValidation     = "validation"

	RoleArchitect   = "architect"
	RoleResearcher  = "researcher"
	RoleImplementer = "implementer"
	RoleTester      = "tester"
	RoleSynthesizer = "synthesizer"
	RoleExecutor    = "executor"
	RoleValidator   = "validator"
)

type compiledTrigger struct {
	name string
	re   *regexp.Regexp
}

type compiledIntent struct {
	Intent
	re *regexp.Regexp
}

// Builder produces execution plans. It is immutable after New and safe for
// concurrent use.
type Builder struct {
	cfg        Config
	domains    []compiledTrigger
	intents    []compiledIntent
	enterprise *regexp.Regexp
	highRisk   *regexp.Regexp
	mediumRisk *regexp.Regexp
}

// Analysis is the classification of a task description.
type Analysis struct {
	Domains    []string
	Intents    []string
	Scope      models.Scope
	Risk       models.Risk
	Enterprise bool
}

// New compiles cfg into a Builder.
func New(cfg Config) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Builder{cfg: cfg}
	for _, d := range cfg.Domains {
		re, err := compile(d.Pattern)
		if err != nil {
			return nil, fmt.Errorf("domain %s: %w", d.Name, err)
		}
		b.domains = append(b.domains, compiledTrigger{name: d.Name, re: re})
	}
	for _, in := range cfg.Intents {
		re, err := compile(in.Pattern)
		if err != nil {
			return nil, fmt.Errorf("intent %s: %w", in.Name, err)
		}
		b.intents = append(b.intents, compiledIntent{Intent: in, re: re})
	}

	var err error
	if b.enterprise, err = compile(cfg.EnterprisePattern); err != nil {
		return nil, fmt.Errorf("enterprise pattern: %w", err)
	}
	if b.highRisk, err = compile(cfg.HighRiskPattern); err != nil {
		return nil, fmt.Errorf("high risk pattern: %w", err)
	}
	if b.mediumRisk, err = compile(cfg.MediumRiskPattern); err != nil {
		return nil, fmt.Errorf("medium risk pattern: %w", err)
	}
	return b, nil
}

// compile returns nil for an empty pattern, which never matches.
func compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile("(?i)" + pattern)
}

func matches(re *regexp.Regexp, text string) bool {
	return re != nil && re.MatchString(text)
}

// Analyze classifies text into domains, intents, scope and risk.
func (b *Builder) Analyze(text string) Analysis {
	var a Analysis

	for _, d := range b.domains {
		if d.re.MatchString(text) {
			a.Domains = append(a.Domains, d.name)
		}
	}
	if len(a.Domains) == 0 {
		a.Domains = []string{GeneralDomain}
	}

	for _, in := range b.intents {
		if in.re.MatchString(text) {
			a.Intents = append(a.Intents, in.Name)
		}
	}

	a.Enterprise = matches(b.enterprise, text)
	a.Scope = b.scope(text, a)
	a.Risk = b.risk(text)
	return a
}

func (b *Builder) scope(text string, a Analysis) models.Scope {
	n := utf8.RuneCountInString(text)
	domains := len(a.Domains)
	if a.Domains[0] == GeneralDomain {
		domains = 0
	}
	t := b.cfg.Thresholds

	switch {
	case a.Enterprise || domains > 3 || n > t.Enterprise:
		return models.ScopeEnterprise
	case n > t.Large || domains == 3:
		return models.ScopeLarge
	case n > t.Medium || domains == 2:
		return models.ScopeMedium
	default:
		return models.ScopeSmall
	}
}

func (b *Builder) risk(text string) models.Risk {
	switch {
	case matches(b.highRisk, text):
		return models.RiskHigh
	case matches(b.mediumRisk, text):
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// Build returns the execution plan for text given the available tool names.
// It is deterministic and has no side effects.
func (b *Builder) Build(text string, available []string) *models.ExecutionPlan {
	a := b.Analyze(text)
	tools := newToolResolver(b.cfg, a.Domains, available)

	var phases []models.Phase
	switch a.Scope {
	case models.ScopeEnterprise:
		phases = b.enterprisePhases(text, a, tools)
	case models.ScopeLarge:
		phases = b.largePhases(text, tools)
	default:
		phases = b.intentPhases(text, a, tools)
	}

	if a.Risk == models.RiskHigh && len(phases) > 0 {
		prev := phases[len(phases)-1].Tasks
		deps := make([]string, len(prev))
		for i, t := range prev {
			deps[i] = t.Role
		}
		phases = append(phases, models.Phase{
			Name:        PhaseValidation,
			Description: "Validate destructive changes before they are accepted",
			Tasks: []models.PlannedTask{
				b.task(RoleValidator, "Validate that the destructive operations are safe and intended for: "+text, text, "", deps, tools.forRole(RoleValidator)),
			},
		})
	}

	for i := range phases {
		phases[i].Parallel = independent(phases[i].Tasks)
	}

	plan := &models.ExecutionPlan{
		Phases:  phases,
		Domains: a.Domains,
		Scope:   a.Scope,
		Risk:    a.Risk,
	}
	plan.EstimatedAgents = plan.TaskCount()
	plan.Strategy = strategy(phases)
	return plan
}

func (b *Builder) enterprisePhases(text string, a Analysis, tools *toolResolver) []models.Phase {
	analysts := make([]models.PlannedTask, 0, len(a.Domains))
	analystRoles := make([]string, 0, len(a.Domains))
	for _, d := range a.Domains {
		role := d + "_analyst"
		analystRoles = append(analystRoles, role)
		analysts = append(analysts, b.task(role,
			fmt.Sprintf("Analyze the %s requirements of: %s", d, text), text, d, nil, tools.union(d)))
	}

	engineers := make([]models.PlannedTask, 0, len(a.Domains))
	for _, d := range a.Domains {
		engineers = append(engineers, b.task(d+"_engineer",
			fmt.Sprintf("Implement the %s part of: %s", d, text), text, d, []string{RoleArchitect}, tools.union(d)))
	}

	return []models.Phase{
		{
			Name:        PhaseDomainAnalysis,
			Description: "Analyze each detected domain independently",
			Tasks:       analysts,
		},
		{
			Name:        PhaseArchitecture,
			Description: "Design the overall architecture from the domain analyses",
			Tasks: []models.PlannedTask{
				b.task(RoleArchitect, "Design the architecture for: "+text, text, "", analystRoles, tools.forRole(RoleArchitect)),
			},
		},
		{
			Name:        PhaseImplementation,
			Description: "Implement each domain against the architecture",
			Tasks:       engineers,
		},
	}
}

func (b *Builder) largePhases(text string, tools *toolResolver) []models.Phase {
	return []models.Phase{
		{
			Name:        PhaseResearch,
			Description: "Gather context before implementation",
			Tasks: []models.PlannedTask{
				b.task(RoleResearcher, "Research the context and constraints of: "+text, text, "", nil, tools.forRole(RoleResearcher)),
			},
		},
		{
			Name:        PhaseImplementation,
			Description: "Implement the change",
			Tasks: []models.PlannedTask{
				b.task(RoleImplementer, "Implement: "+text, text, "", []string{RoleResearcher}, tools.forRole(RoleImplementer)),
			},
		},
		{
			Name:        PhaseTesting,
			Description: "Test the implementation",
			Tasks: []models.PlannedTask{
				b.task(RoleTester, "Test the implementation of: "+text, text, "", []string{RoleImplementer}, tools.forRole(RoleTester)),
			},
		},
	}
}

func (b *Builder) intentPhases(text string, a Analysis, tools *toolResolver) []models.Phase {
	if len(a.Intents) == 0 {
		return []models.Phase{{
			Name:        PhaseExecution,
			Description: "Execute the task directly",
			Tasks: []models.PlannedTask{
				b.task(RoleExecutor, text, text, "", nil, tools.all()),
			},
		}}
	}

	var phases []models.Phase
	prev := ""
	for _, in := range b.intents {
		if !contains(a.Intents, in.Name) {
			continue
		}
		var deps []string
		if prev != "" {
			deps = []string{prev}
		}
		phases = append(phases, models.Phase{
			Name:        in.Phase,
			Description: in.Description,
			Tasks: []models.PlannedTask{
				b.task(in.Role, in.Description+": "+text, text, "", deps, tools.forRole(in.Role)),
			},
		})
		prev = in.Role
	}

	if len(phases) > 1 {
		phases = append(phases, models.Phase{
			Name:        PhaseSynthesis,
			Description: "Combine the results of the previous phases",
			Tasks: []models.PlannedTask{
				b.task(RoleSynthesizer, "Synthesize the results for: "+text, text, "", []string{prev}, tools.forRole(RoleSynthesizer)),
			},
		})
	}
	return phases
}

// task builds a PlannedTask. Context tags mirror the dependency roles since
// every entry is tagged with its author role.
func (b *Builder) task(role, description, text, domain string, deps, tools []string) models.PlannedTask {
	input := map[string]any{"task": text}
	if domain != "" {
		input["domain"] = domain
	}
	return models.PlannedTask{
		Role:         role,
		Description:  description,
		Input:        input,
		Dependencies: deps,
		Tools:        tools,
		ContextTags:  append([]string(nil), deps...),
	}
}

// independent reports whether a phase may run in parallel: more than one
// task and no task depending on another task of the same phase.
func independent(tasks []models.PlannedTask) bool {
	if len(tasks) < 2 {
		return false
	}
	roles := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		roles[t.Role] = true
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if roles[dep] {
				return false
			}
		}
	}
	return true
}

func strategy(phases []models.Phase) string {
	parts := make([]string, len(phases))
	total := 0
	for i, p := range phases {
		mode := "sequential"
		if p.Parallel {
			mode = "parallel"
		}
		parts[i] = fmt.Sprintf("%s(%d, %s)", p.Name, len(p.Tasks), mode)
		total += len(p.Tasks)
	}
	return fmt.Sprintf("%s; %d tasks in %d phases", strings.Join(parts, " → "), total, len(phases))
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
