package models

import "time"

// BlackboardEntry is a versioned, tagged key/value record scoped to a run.
// (RunID, Key) is the natural key; rewrites bump Version in place.
type BlackboardEntry struct {
	ID        string     `json:"id"`
	RunID     string     `json:"run_id"`
	Key       string     `json:"key"`
	Value     Document   `json:"value"`
	Author    string     `json:"author"`
	Tags      []string   `json:"tags"`
	EntityIDs []string   `json:"entity_ids,omitempty"`
	EventDate *time.Time `json:"event_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Version   int        `json:"version"`
}

// HasAnyTag reports whether the entry carries at least one of tags.
func (e *BlackboardEntry) HasAnyTag(tags []string) bool {
	return intersects(e.Tags, tags)
}

// Artifact is an append-only output file produced by a task.
type Artifact struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	TaskID      string    `json:"task_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Content     []byte    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// Tool is a registry row: static usage instructions handed to executors.
type Tool struct {
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description" yaml:"description"`
	Instructions string    `json:"instructions" yaml:"instructions"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"-"`
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	for _, s := range a {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}
