package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// RegisterTool inserts a tool or replaces the description and instructions
// of an existing one.
func (db *DB) RegisterTool(t *models.Tool) error {
	if t.Name == "" {
		return fmt.Errorf("register tool: name is required")
	}
	now := time.Now().UTC()

	_, err := db.Exec(`
		INSERT INTO tools (name, description, instructions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			instructions = excluded.instructions,
			updated_at = excluded.updated_at
	`, t.Name, t.Description, t.Instructions, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("register tool: %w", err)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return nil
}

// GetTool retrieves a tool by name.
// Returns nil, nil if not found.
func (db *DB) GetTool(name string) (*models.Tool, error) {
	row := db.QueryRow(`
		SELECT name, description, instructions, created_at, updated_at
		FROM tools WHERE name = ?
	`, name)
	t, err := scanTool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tool: %w", err)
	}
	return t, nil
}

// ListTools returns every registered tool ordered by name.
func (db *DB) ListTools() ([]models.Tool, error) {
	rows, err := db.Query(`
		SELECT name, description, instructions, created_at, updated_at
		FROM tools ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()

	var tools []models.Tool
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tool: %w", err)
		}
		tools = append(tools, *t)
	}
	return tools, rows.Err()
}

// ToolNames returns the names of every registered tool ordered by name.
func (db *DB) ToolNames() ([]string, error) {
	tools, err := db.ListTools()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names, nil
}

func scanTool(s scanner) (*models.Tool, error) {
	var t models.Tool
	var createdAt, updatedAt string
	if err := s.Scan(&t.Name, &t.Description, &t.Instructions, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &t, nil
}
