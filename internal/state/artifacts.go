package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// SaveArtifact appends an artifact. Missing id and timestamp are filled in.
func (db *DB) SaveArtifact(a *models.Artifact) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	contentType := a.ContentType
	if contentType == "" {
		contentType = "text/plain"
		a.ContentType = contentType
	}

	_, err := db.Exec(`
		INSERT INTO artifacts (id, run_id, task_id, name, content_type, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.RunID, a.TaskID, a.Name, contentType, a.Content, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns a run's artifacts in creation order.
func (db *DB) ListArtifacts(runID string) ([]models.Artifact, error) {
	rows, err := db.Query(`
		SELECT id, run_id, task_id, name, content_type, content, created_at
		FROM artifacts WHERE run_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []models.Artifact
	for rows.Next() {
		var a models.Artifact
		var createdAt string
		if err := rows.Scan(&a.ID, &a.RunID, &a.TaskID, &a.Name, &a.ContentType, &a.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
