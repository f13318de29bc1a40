// Package agent defines the contract between the phase executor and the
// external service that carries out a single role's task.
package agent

import (
	"context"
	"strings"
	"time"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// ContextEntry is a blackboard entry handed to the executor as input.
type ContextEntry struct {
	Key    string          `json:"key"`
	Value  models.Document `json:"value"`
	Author string          `json:"author"`
	Tags   []string        `json:"tags,omitempty"`
}

// ToolInstruction is the registry text for one granted tool.
type ToolInstruction struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Request is everything an executor learns about a task.
type Request struct {
	RunID       string            `json:"run_id"`
	TaskID      string            `json:"task_id"`
	Role        string            `json:"role"`
	Description string            `json:"description"`
	Input       map[string]any    `json:"input,omitempty"`
	Context     []ContextEntry    `json:"context"`
	Tools       []ToolInstruction `json:"tools"`
}

// EntryOutput is a blackboard write requested by the executor. Keys are
// local to the role; the phase executor qualifies them.
type EntryOutput struct {
	Key       string          `json:"key"`
	Value     models.Document `json:"value"`
	Tags      []string        `json:"tags,omitempty"`
	EntityIDs []string        `json:"entity_ids,omitempty"`
	EventDate string          `json:"event_date,omitempty"`
}

// ArtifactOutput is a file produced by the executor.
type ArtifactOutput struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Content     string `json:"content"`
}

// Response is the executor's report for one task.
type Response struct {
	Success    bool             `json:"success"`
	Data       models.Document  `json:"data,omitempty"`
	Entries    []EntryOutput    `json:"entries,omitempty"`
	Artifacts  []ArtifactOutput `json:"artifacts,omitempty"`
	Confidence float64          `json:"confidence"`
	Error      string           `json:"error,omitempty"`
}

// Executor carries out one task. Implementations should honour ctx, but
// Invoke enforces the deadline either way.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts an ordinary function to the Executor interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Execute calls f(ctx, req).
func (f Func) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

var eventDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// ParseEventDate accepts RFC 3339 timestamps or plain dates. The second
// result is false when s is empty or unparseable.
func ParseEventDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
