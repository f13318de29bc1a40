package models

// Scope is the planner's size estimate for a task description.
type Scope string

const (
	ScopeSmall      Scope = "small"
	ScopeMedium     Scope = "medium"
	ScopeLarge      Scope = "large"
	ScopeEnterprise Scope = "enterprise"
)

// Risk is the planner's risk estimate for a task description.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// ExecutionPlan is the ordered list of phases produced for a task description.
type ExecutionPlan struct {
	Phases []Phase `json:"phases"`

	// The fields below are informational and never drive control flow.
	EstimatedAgents int      `json:"estimated_agents"`
	Strategy        string   `json:"strategy"`
	Domains         []string `json:"domains,omitempty"`
	Scope           Scope    `json:"scope,omitempty"`
	Risk            Risk     `json:"risk,omitempty"`
}

// Phase is an ordered group of tasks sharing an execution mode.
type Phase struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Tasks       []PlannedTask `json:"tasks"`
	Parallel    bool          `json:"parallel"`
}

// PlannedTask is a task before materialization. Dependencies are role names,
// resolved to task IDs only when the plan is materialized.
type PlannedTask struct {
	Role         string         `json:"role"`
	Description  string         `json:"description"`
	Input        map[string]any `json:"input,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Tools        []string       `json:"tools"`
	ContextTags  []string       `json:"context_tags,omitempty"`
}

// TaskCount returns the number of planned tasks across all phases.
func (p *ExecutionPlan) TaskCount() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, ph := range p.Phases {
		n += len(ph.Tasks)
	}
	return n
}

// Roles returns every role name in plan order.
func (p *ExecutionPlan) Roles() []string {
	if p == nil {
		return nil
	}
	roles := make([]string, 0, p.TaskCount())
	for _, ph := range p.Phases {
		for _, t := range ph.Tasks {
			roles = append(roles, t.Role)
		}
	}
	return roles
}

// PlannedTasks returns every planned task in plan order.
func (p *ExecutionPlan) PlannedTasks() []PlannedTask {
	if p == nil {
		return nil
	}
	out := make([]PlannedTask, 0, p.TaskCount())
	for _, ph := range p.Phases {
		out = append(out, ph.Tasks...)
	}
	return out
}
