package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// ErrInvalidTransition is returned when a task status change would break
// the pending → running → terminal state machine.
var ErrInvalidTransition = errors.New("invalid task transition")

var taskColumnList = []string{
	"id", "run_id", "role", "description", "input", "dependencies", "status",
	"result", "confidence", "created_at", "started_at", "completed_at",
	"elapsed_ms", "error", "retry_count", "phase_index", "position", "tools",
	"context_tags",
}

var taskColumns = strings.Join(taskColumnList, ", ")

func qualifiedTaskColumns(alias string) string {
	cols := make([]string, len(taskColumnList))
	for i, c := range taskColumnList {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// CreateTask inserts a new task into the database.
func (db *DB) CreateTask(t *models.Task) error {
	if !t.Status.Valid() {
		return fmt.Errorf("create task: invalid status %q", t.Status)
	}
	input, err := encodeMap(t.Input)
	if err != nil {
		return fmt.Errorf("encode task input: %w", err)
	}
	deps, err := encodeStrings(t.Dependencies)
	if err != nil {
		return fmt.Errorf("encode dependencies: %w", err)
	}
	tools, err := encodeStrings(t.Tools)
	if err != nil {
		return fmt.Errorf("encode tools: %w", err)
	}
	tags, err := encodeStrings(t.ContextTags)
	if err != nil {
		return fmt.Errorf("encode context tags: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.RunID, t.Role, t.Description, input, deps, string(t.Status),
		t.Result, t.Confidence, formatTime(t.CreatedAt), nullableTime(t.StartedAt),
		nullableTime(t.CompletedAt), t.Elapsed.Milliseconds(), nullableString(t.Error),
		t.RetryCount, t.PhaseIndex, t.Position, tools, tags)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
// Returns nil, nil if not found.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask writes every mutable column of a task.
func (db *DB) UpdateTask(t *models.Task) error {
	if !t.Status.Valid() {
		return fmt.Errorf("update task: invalid status %q", t.Status)
	}
	result, err := db.Exec(`
		UPDATE tasks SET
			status = ?, result = ?, confidence = ?, started_at = ?, completed_at = ?,
			elapsed_ms = ?, error = ?, retry_count = ?
		WHERE id = ?
	`, string(t.Status), t.Result, t.Confidence, nullableTime(t.StartedAt),
		nullableTime(t.CompletedAt), t.Elapsed.Milliseconds(), nullableString(t.Error),
		t.RetryCount, t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// TransitionTask writes t like UpdateTask but only if the stored status is
// still from and from may legally move to t.Status.
func (db *DB) TransitionTask(t *models.Task, from models.TaskStatus) error {
	if !from.CanTransition(t.Status) {
		return fmt.Errorf("task %s %s -> %s: %w", t.ID, from, t.Status, ErrInvalidTransition)
	}
	result, err := db.Exec(`
		UPDATE tasks SET
			status = ?, result = ?, confidence = ?, started_at = ?, completed_at = ?,
			elapsed_ms = ?, error = ?, retry_count = ?
		WHERE id = ? AND status = ?
	`, string(t.Status), t.Result, t.Confidence, nullableTime(t.StartedAt),
		nullableTime(t.CompletedAt), t.Elapsed.Milliseconds(), nullableString(t.Error),
		t.RetryCount, t.ID, string(from))
	if err != nil {
		return fmt.Errorf("transition task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s is not %s: %w", t.ID, from, ErrInvalidTransition)
	}
	return nil
}

// ListTasks returns every task of a run in phase, then position, order.
func (db *DB) ListTasks(runID string) ([]models.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE run_id = ?
		ORDER BY phase_index ASC, position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

// ReadyTasks returns the pending tasks of a run whose dependencies all name
// completed tasks of the same run.
func (db *DB) ReadyTasks(runID string) ([]models.Task, error) {
	rows, err := db.Query(`
		SELECT `+qualifiedTaskColumns("t")+` FROM tasks t
		WHERE t.run_id = ? AND t.status = 'pending'
		AND NOT EXISTS (
			SELECT 1 FROM json_each(t.dependencies) d
			LEFT JOIN tasks dt ON dt.id = d.value AND dt.run_id = t.run_id
			WHERE dt.id IS NULL OR dt.status != 'completed'
		)
		ORDER BY t.phase_index ASC, t.position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list ready tasks: %w", err)
	}
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func scanTask(s scanner) (*models.Task, error) {
	var t models.Task
	var input, startedAt, completedAt, errMsg sql.NullString
	var deps, status, createdAt, tools, tags string
	var confidence sql.NullFloat64
	var elapsedMS int64

	if err := s.Scan(&t.ID, &t.RunID, &t.Role, &t.Description, &input, &deps, &status,
		&t.Result, &confidence, &createdAt, &startedAt, &completedAt, &elapsedMS,
		&errMsg, &t.RetryCount, &t.PhaseIndex, &t.Position, &tools, &tags); err != nil {
		return nil, err
	}

	var err error
	t.Status = models.TaskStatus(status)
	if t.Input, err = decodeMap(input); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if t.Dependencies, err = decodeStrings(deps); err != nil {
		return nil, fmt.Errorf("decode dependencies: %w", err)
	}
	if t.Tools, err = decodeStrings(tools); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}
	if t.ContextTags, err = decodeStrings(tags); err != nil {
		return nil, fmt.Errorf("decode context tags: %w", err)
	}
	if confidence.Valid {
		c := confidence.Float64
		t.Confidence = &c
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	t.StartedAt = parseNullableTime(startedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	t.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	t.Error = errMsg.String
	return &t, nil
}
