package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ShayCichocki/hivemind/internal/agent"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

type fakeMessages struct {
	reply string
	err   error
	got   anthropic.MessageNewParams
}

func (f *fakeMessages) New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	f.got = body
	if f.err != nil {
		return nil, f.err
	}

	raw, err := json.Marshal(map[string]any{
		"id":          "msg_test",
		"type":        "message",
		"role":        "assistant",
		"model":       string(body.Model),
		"stop_reason": "end_turn",
		"content":     []map[string]any{{"type": "text", "text": f.reply}},
		"usage":       map[string]any{"input_tokens": 120, "output_tokens": 30},
	})
	if err != nil {
		return nil, err
	}

	var msg anthropic.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func newFakeClient(fake *fakeMessages) *Client {
	return &Client{messages: fake, model: DefaultModel, tracker: NewTokenTracker()}
}

func TestExecutor_Execute(t *testing.T) {
	fake := &fakeMessages{reply: "Here you go:\n```json\n" +
		`{"success": true, "data": {"summary": "done"}, "entries": [{"key": "findings", "value": ["a", "b"], "tags": ["security"]}], "confidence": 0.7}` +
		"\n```"}
	client := newFakeClient(fake)
	exec := NewExecutor(client, WithMaxTokens(1024))

	req := &agent.Request{
		RunID:       "run-1",
		TaskID:      "task-1",
		Role:        "researcher",
		Description: "Research the auth flow",
		Input:       map[string]any{"task": "audit login", "domain": "security"},
		Context: []agent.ContextEntry{
			{Key: "architect:design", Author: "architect", Value: models.MustDocument("use oauth")},
		},
		Tools: []agent.ToolInstruction{
			{Name: "web_search", Description: "search the web", Instructions: "cite sources\nbe brief"},
		},
	}

	resp, err := exec.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !resp.Success || resp.Confidence != 0.7 {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Key != "findings" || resp.Entries[0].Value.String() != `["a", "b"]` {
		t.Errorf("Entries = %+v", resp.Entries)
	}

	if fake.got.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", fake.got.MaxTokens)
	}
	if len(fake.got.System) != 1 || fake.got.System[0].Text != systemPrompt {
		t.Error("system prompt not sent")
	}

	in, out := client.Tracker().Total()
	if in != 120 || out != 30 || client.Tracker().Calls() != 1 {
		t.Errorf("tracker = %d/%d over %d calls", in, out, client.Tracker().Calls())
	}
}

func TestExecutor_APIError(t *testing.T) {
	exec := NewExecutor(newFakeClient(&fakeMessages{err: errors.New("overloaded")}))

	_, err := exec.Execute(context.Background(), &agent.Request{Role: "implementer"})
	if err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("err = %v, want wrapped api error", err)
	}
}

func TestExecutor_ThroughInvoke(t *testing.T) {
	exec := NewExecutor(newFakeClient(&fakeMessages{reply: "I could not produce JSON today."}))

	resp := agent.Invoke(context.Background(), exec, &agent.Request{Role: "reviewer"}, 0)
	if resp.Success {
		t.Fatal("Success = true for unparseable reply")
	}
	if !strings.Contains(resp.Error, ErrUnparseable.Error()) {
		t.Errorf("Error = %q", resp.Error)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := buildPrompt(&agent.Request{
		Role:        "reviewer",
		Description: "Review the change",
		Input:       map[string]any{"task": "fix the bug"},
		Context: []agent.ContextEntry{
			{Key: "implementer:summary", Author: "implementer", Value: models.MustDocument("patched")},
		},
		Tools: []agent.ToolInstruction{
			{Name: "shell", Instructions: "run tests\nreport failures"},
			{Name: "git"},
		},
	})
	if err != nil {
		t.Fatalf("buildPrompt failed: %v", err)
	}

	for _, want := range []string{
		"## Role\nreviewer",
		"## Assignment\nReview the change",
		`"task": "fix the bug"`,
		"### implementer:summary (by implementer)\n\"patched\"",
		"- shell\n  run tests\n  report failures",
		"- git\n",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPrompt_OmitsEmptySections(t *testing.T) {
	prompt, err := buildPrompt(&agent.Request{Role: "synthesizer", Description: "merge"})
	if err != nil {
		t.Fatalf("buildPrompt failed: %v", err)
	}
	for _, section := range []string{"## Input", "## Context", "## Tools"} {
		if strings.Contains(prompt, section) {
			t.Errorf("prompt contains empty section %q", section)
		}
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
		success bool
	}{
		{"bare object", `{"success": true, "confidence": 1}`, false, true},
		{"json fence", "```json\n{\"success\": false, \"error\": \"no access\"}\n```", false, false},
		{"plain fence", "```\n{\"success\": true}\n```", false, true},
		{"surrounding prose", "Result follows {\"success\": true} hope that helps", false, true},
		{"nested braces", `{"success": true, "data": {"a": {"b": 1}}}`, false, true},
		{"fenced artifact content", `{"success": true, "artifacts": [{"name": "main", "content_type": "text/markdown", "content": "` + "```go\\nx\\n```" + `"}]}`, false, true},
		{"outer fence with fenced artifact content", "```json\n" + `{"success": true, "artifacts": [{"name": "main", "content": "` + "```go\\nx\\n```" + `"}]}` + "\n```", false, true},
		{"prose then fence", "Here it is:\n```json\n{\"success\": true}\n```", false, true},
		{"no object", "nothing to see", true, false},
		{"broken object", `{"success": tru}`, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := parseResponse(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrUnparseable) {
					t.Fatalf("err = %v, want ErrUnparseable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseResponse failed: %v", err)
			}
			if resp.Success != tt.success {
				t.Errorf("Success = %v, want %v", resp.Success, tt.success)
			}
			for _, a := range resp.Artifacts {
				if a.Content != "```go\nx\n```" {
					t.Errorf("artifact content = %q", a.Content)
				}
			}
		})
	}
}
