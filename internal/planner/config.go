// Package planner turns a task description into an ExecutionPlan using
// deterministic keyword triggers.
package planner

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Trigger names a classification and the case-insensitive regular
// expression that selects it.
type Trigger struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// Intent is a small/medium-scope phase selected by a textual trigger.
type Intent struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Phase       string `yaml:"phase"`
	Role        string `yaml:"role"`
	Description string `yaml:"description"`
}

// Thresholds are the rune counts above which text is promoted to a larger
// scope.
type Thresholds struct {
	Medium     int `yaml:"medium"`
	Large      int `yaml:"large"`
	Enterprise int `yaml:"enterprise"`
}

// Config holds every table the Builder consults. Order in Domains and
// Intents is the precedence order when several triggers fire.
type Config struct {
	Domains           []Trigger           `yaml:"domains"`
	Intents           []Intent            `yaml:"intents"`
	EnterprisePattern string              `yaml:"enterprise_pattern"`
	HighRiskPattern   string              `yaml:"high_risk_pattern"`
	MediumRiskPattern string              `yaml:"medium_risk_pattern"`
	Thresholds        Thresholds          `yaml:"thresholds"`
	Tools             map[string][]string `yaml:"tools"`
	// RoleTools maps a fixed role to its tool key. Roles absent here use the
	// union of the detected domains' tool lists.
	RoleTools map[string]string `yaml:"role_tools"`
}

// GeneralDomain is used when no domain trigger fires.
const GeneralDomain = "general"

// DefaultConfig returns the built-in trigger and tool tables.
func DefaultConfig() Config {
	return Config{
		Domains: []Trigger{
			{"security", `\b(security|secure|auth|authentication|authorization|vulnerabilit(y|ies)|encrypt\w*|xss|csrf|owasp|pentest)\b`},
			{"database", `\b(database|databases|db|sql|postgres(ql)?|mysql|sqlite|mongo(db)?|schema|migrations?|queries|query)\b`},
			{"api", `\b(api|apis|endpoints?|rest|graphql|grpc|webhooks?)\b`},
			{"frontend", `\b(frontend|front-end|ui|ux|react|vue|angular|svelte|css|html|components?)\b`},
			{"backend", `\b(backend|back-end|server|services?|microservices?|handlers?|middleware)\b`},
			{"devops", `\b(devops|deploy|deployment|docker|kubernetes|k8s|ci|cd|pipelines?|terraform|infrastructure|helm)\b`},
			{"research", `\b(research|investigate|compare|comparison|analy[sz]e|analysis|survey|evaluate|explore|study)\b`},
			{"testing", `\b(tests?|testing|coverage|qa|e2e)\b`},
		},
		Intents: []Intent{
			{"research", `\b(research|investigate|compare|comparison|analy[sz]e|survey|evaluate|explore|study)\b`, "research", "researcher", "Research and gather the information needed for"},
			{"build", `\b(build|implement|develop|code|fix|refactor|write)\b`, "implementation", "implementer", "Implement"},
			{"review", `\b(review|test|tests|testing|audit|verify|validate)\b`, "review", "reviewer", "Review and verify the work done for"},
		},
		EnterprisePattern: `\b(enterprise|platform|architecture)\b`,
		HighRiskPattern:   `\b(delete|destroy|drop|wipe|truncate|purge)\b`,
		MediumRiskPattern: `\b(production|prod|critical|live|payments?)\b`,
		Thresholds: Thresholds{
			Medium:     200,
			Large:      800,
			Enterprise: 2000,
		},
		Tools: map[string][]string{
			"security": {"code_search", "file_read", "security_scan"},
			"database": {"file_read", "file_write", "sql_query"},
			"api":      {"file_read", "file_write", "http_request"},
			"frontend": {"file_read", "file_write", "browser"},
			"backend":  {"file_read", "file_write", "shell"},
			"devops":   {"file_read", "file_write", "shell"},
			"research": {"web_search", "web_fetch"},
			"testing":  {"file_read", "shell", "test_runner"},
			"general":  {"file_read", "file_write"},
		},
		RoleTools: map[string]string{
			"researcher":  "research",
			"reviewer":    "testing",
			"tester":      "testing",
			"validator":   "testing",
			"synthesizer": "general",
			"architect":   "general",
		},
	}
}

// LoadConfig reads a YAML file and overlays it onto DefaultConfig. Lists in
// the file replace the defaults; map keys are merged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read planner config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse planner config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for structural mistakes. Pattern syntax
// is checked when the Builder compiles it.
func (c Config) Validate() error {
	if len(c.Domains) == 0 {
		return fmt.Errorf("planner config: no domains")
	}
	seen := make(map[string]bool, len(c.Domains))
	for _, d := range c.Domains {
		if d.Name == "" || d.Pattern == "" {
			return fmt.Errorf("planner config: domain needs name and pattern")
		}
		if d.Name == GeneralDomain {
			return fmt.Errorf("planner config: %q is reserved", GeneralDomain)
		}
		if seen[d.Name] {
			return fmt.Errorf("planner config: duplicate domain %q", d.Name)
		}
		seen[d.Name] = true
	}

	roles := make(map[string]bool, len(c.Intents))
	for _, in := range c.Intents {
		if in.Name == "" || in.Pattern == "" || in.Role == "" {
			return fmt.Errorf("planner config: intent needs name, pattern and role")
		}
		if roles[in.Role] {
			return fmt.Errorf("planner config: duplicate intent role %q", in.Role)
		}
		roles[in.Role] = true
	}

	t := c.Thresholds
	if t.Medium <= 0 || t.Large <= t.Medium || t.Enterprise <= t.Large {
		return fmt.Errorf("planner config: thresholds must increase (medium %d, large %d, enterprise %d)", t.Medium, t.Large, t.Enterprise)
	}
	return nil
}
