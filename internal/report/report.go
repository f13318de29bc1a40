// Package report folds the final state of a run into a readable summary.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// Counts tallies task outcomes. Tasks that never reached a terminal status
// count toward Total only.
func Counts(tasks []models.Task) (succeeded, failed, total int) {
	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusCompleted:
			succeeded++
		case models.TaskStatusFailed:
			failed++
		}
	}
	return succeeded, failed, len(tasks)
}

// Synthesize renders the report for a run: a success count, one section per
// completed task with its result, then every failed task with its error.
// Tasks are reported in the order given.
func Synthesize(tasks []models.Task, entries []models.BlackboardEntry) string {
	succeeded, failed, total := Counts(tasks)

	authored := make(map[string]int, len(tasks))
	for _, e := range entries {
		authored[e.Author]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Run report: %d/%d tasks succeeded\n", succeeded, total)

	for _, t := range tasks {
		if t.Status != models.TaskStatusCompleted {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n", t.Role)
		fmt.Fprintf(&b, "confidence %s, %d %s, %s\n\n",
			formatConfidence(t.Confidence), authored[t.Role], plural(authored[t.Role], "entry", "entries"), t.Elapsed.Round(1e6))
		b.WriteString(RenderResult(t.Result))
		b.WriteString("\n")
	}

	if failed > 0 {
		b.WriteString("\n## Failures\n")
		for _, t := range tasks {
			if t.Status != models.TaskStatusFailed {
				continue
			}
			msg := t.Error
			if msg == "" {
				msg = "unknown error"
			}
			fmt.Fprintf(&b, "- %s: %s\n", t.Role, msg)
		}
	}

	return b.String()
}

// RenderResult renders a task result. JSON strings print as text, a
// "summary" field prints first, anything else prints as indented JSON.
func RenderResult(doc models.Document) string {
	if doc.IsNull() {
		return "(no result)"
	}

	var s string
	if err := json.Unmarshal(doc, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(doc, &obj); err == nil {
		if raw, ok := obj["summary"]; ok {
			var summary string
			if json.Unmarshal(raw, &summary) == nil && summary != "" {
				delete(obj, "summary")
				if len(obj) == 0 {
					return summary
				}
				rest, err := json.MarshalIndent(obj, "", "  ")
				if err == nil {
					return summary + "\n\n" + string(rest)
				}
			}
		}
	}

	var out bytes.Buffer
	if err := json.Indent(&out, doc, "", "  "); err != nil {
		return doc.String()
	}
	return out.String()
}

func formatConfidence(c *float64) string {
	if c == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *c)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
