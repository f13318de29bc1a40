package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// DryRunExecutor completes every task without calling a model. It writes a
// summary entry so downstream roles see context flow through the blackboard.
type DryRunExecutor struct {
	// Delay simulates work; zero returns immediately.
	Delay time.Duration
}

// Execute implements Executor.
func (d DryRunExecutor) Execute(ctx context.Context, req *Request) (*Response, error) {
	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	seen := make([]string, len(req.Context))
	for i, e := range req.Context {
		seen[i] = e.Key
	}
	tools := make([]string, len(req.Tools))
	for i, t := range req.Tools {
		tools[i] = t.Name
	}

	summary := fmt.Sprintf("dry run of %s: %s", req.Role, req.Description)
	data, err := models.NewDocument(map[string]any{
		"summary":     summary,
		"context":     seen,
		"tools":       tools,
		"dry_run":     true,
		"description": req.Description,
	})
	if err != nil {
		return nil, err
	}

	return &Response{
		Success: true,
		Data:    data,
		Entries: []EntryOutput{{
			Key:   "summary",
			Value: models.MustDocument(summary),
		}},
		Confidence: 1,
	}, nil
}
