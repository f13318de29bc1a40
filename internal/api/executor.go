package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/hivemind/internal/agent"
)

// DefaultMaxTokens caps a single task response.
const DefaultMaxTokens = 8192

// ErrUnparseable is returned when the model reply holds no JSON object.
var ErrUnparseable = errors.New("model reply is not a JSON response object")

const systemPrompt = `You are one role in a team of agents working on a larger task.
Complete only your own role's assignment using the context provided.

Reply with a single JSON object and nothing else:
{
  "success": true,
  "data": <any JSON value summarising your result>,
  "entries": [{"key": "short_name", "value": <any JSON>, "tags": ["topic"], "entity_ids": [], "event_date": ""}],
  "artifacts": [{"name": "file.md", "content_type": "text/markdown", "content": "..."}],
  "confidence": 0.0,
  "error": ""
}

entries are shared with later roles; keep them small and factual.
confidence is your own estimate between 0 and 1.
Set success to false and explain in error if you cannot complete the task.`

// Executor runs tasks as single Messages API calls.
type Executor struct {
	client    *Client
	maxTokens int64
	logger    *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxTokens sets the response token cap.
func WithMaxTokens(n int64) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithLogger sets the logger used for per-call usage lines.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an Executor backed by client.
func NewExecutor(client *Client, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:    client,
		maxTokens: DefaultMaxTokens,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements agent.Executor.
func (e *Executor) Execute(ctx context.Context, req *agent.Request) (*agent.Response, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.client.model,
		MaxTokens: e.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("messages api: %w", err)
	}

	e.client.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	e.logger.Debug("model call finished",
		"role", req.Role,
		"task_id", req.TaskID,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", string(resp.StopReason),
	)

	return parseResponse(extractText(resp))
}

func extractText(resp *anthropic.Message) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(variant.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func buildPrompt(req *agent.Request) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "## Role\n%s\n\n", req.Role)
	fmt.Fprintf(&b, "## Assignment\n%s\n\n", req.Description)

	if len(req.Input) > 0 {
		input, err := json.MarshalIndent(req.Input, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode input: %w", err)
		}
		fmt.Fprintf(&b, "## Input\n%s\n\n", input)
	}

	if len(req.Context) > 0 {
		b.WriteString("## Context from earlier roles\n")
		for _, entry := range req.Context {
			fmt.Fprintf(&b, "### %s (by %s)\n%s\n", entry.Key, entry.Author, entry.Value.String())
		}
		b.WriteString("\n")
	}

	if len(req.Tools) > 0 {
		b.WriteString("## Tools available to you\n")
		for _, tool := range req.Tools {
			fmt.Fprintf(&b, "- %s", tool.Name)
			if tool.Description != "" {
				fmt.Fprintf(&b, ": %s", tool.Description)
			}
			b.WriteString("\n")
			if tool.Instructions != "" {
				fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(strings.TrimSpace(tool.Instructions), "\n", "\n  "))
			}
		}
	}

	return b.String(), nil
}

// parseResponse decodes the JSON object in a model reply. Markdown code
// fences and prose around the object are tolerated.
func parseResponse(text string) (*agent.Response, error) {
	raw := extractJSONObject(text)
	if raw == "" {
		return nil, ErrUnparseable
	}

	var resp agent.Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return &resp, nil
}

// extractJSONObject returns the span from the first '{' to the last '}'.
// An outer fence is stripped only when it wraps the whole reply; fences
// inside string values such as artifact content are left alone.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) {
		return text
	}

	if strings.HasPrefix(text, "```") && strings.HasSuffix(text, "```") && len(text) > 6 {
		body := strings.TrimSuffix(text, "```")
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		} else {
			body = body[3:]
		}
		text = strings.TrimSpace(body)
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
