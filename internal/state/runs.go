package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// RunPatch is a partial update for a run. Nil fields are left unchanged.
type RunPatch struct {
	Status      *models.RunStatus
	Plan        models.Document
	Result      models.Document
	CompletedAt *time.Time
	Elapsed     *time.Duration
	Error       *string
	Metadata    map[string]any
}

const runColumns = `id, task_text, plan, status, result, started_at, completed_at, elapsed_ms, error, metadata`

// CreateRun inserts a new run into the database.
func (db *DB) CreateRun(r *models.Run) error {
	if !r.Status.Valid() {
		return fmt.Errorf("create run: invalid status %q", r.Status)
	}
	meta, err := encodeMap(r.Metadata)
	if err != nil {
		return fmt.Errorf("encode run metadata: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.TaskText, r.Plan, string(r.Status), r.Result, formatTime(r.StartedAt),
		nullableTime(r.CompletedAt), r.Elapsed.Milliseconds(), nullableString(r.Error), meta)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
// Returns nil, nil if not found.
func (db *DB) GetRun(id string) (*models.Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// UpdateRun applies a partial update to a run.
func (db *DB) UpdateRun(id string, p RunPatch) error {
	var sets []string
	var args []any

	if p.Status != nil {
		if !p.Status.Valid() {
			return fmt.Errorf("update run: invalid status %q", *p.Status)
		}
		sets = append(sets, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.Plan != nil {
		sets = append(sets, "plan = ?")
		args = append(args, p.Plan)
	}
	if p.Result != nil {
		sets = append(sets, "result = ?")
		args = append(args, p.Result)
	}
	if p.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, formatTime(*p.CompletedAt))
	}
	if p.Elapsed != nil {
		sets = append(sets, "elapsed_ms = ?")
		args = append(args, p.Elapsed.Milliseconds())
	}
	if p.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, nullableString(*p.Error))
	}
	if p.Metadata != nil {
		meta, err := encodeMap(p.Metadata)
		if err != nil {
			return fmt.Errorf("encode run metadata: %w", err)
		}
		sets = append(sets, "metadata = ?")
		args = append(args, meta)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	result, err := db.Exec(`UPDATE runs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update run %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListRuns returns runs newest first. A limit of zero or less returns all runs.
func (db *DB) ListRuns(limit int) ([]models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and, through cascading foreign keys, its tasks,
// entries and artifacts. Returns false if no run had the id.
func (db *DB) DeleteRun(id string) (bool, error) {
	result, err := db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.Run, error) {
	var r models.Run
	var status, startedAt string
	var completedAt, errMsg, metadata sql.NullString
	var elapsedMS int64

	if err := s.Scan(&r.ID, &r.TaskText, &r.Plan, &status, &r.Result, &startedAt,
		&completedAt, &elapsedMS, &errMsg, &metadata); err != nil {
		return nil, err
	}

	var err error
	r.Status = models.RunStatus(status)
	r.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	r.CompletedAt = parseNullableTime(completedAt)
	r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	r.Error = errMsg.String
	r.Metadata, err = decodeMap(metadata)
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &r, nil
}
