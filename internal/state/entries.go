package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// EntryFilter narrows QueryEntries. Empty fields do not filter.
type EntryFilter struct {
	// Tags keeps entries carrying at least one of these tags.
	Tags []string
	// Author keeps entries written by this role.
	Author string
	// EntityIDs keeps entries referencing at least one of these ids.
	EntityIDs []string
	// Limit keeps only the most recent N matches when positive.
	Limit int
}

const entryColumns = `id, run_id, key, value, author, tags, entity_ids, event_date, created_at, version`

// WriteEntry upserts an entry on (run_id, key). A rewrite replaces value,
// author, tags, entity ids and event date, refreshes the timestamp and bumps
// the version. On return e carries the stored id, timestamp and version.
func (db *DB) WriteEntry(e *models.BlackboardEntry) (int, error) {
	if e.RunID == "" || e.Key == "" {
		return 0, fmt.Errorf("write entry: run id and key are required")
	}
	tags, err := encodeStrings(e.Tags)
	if err != nil {
		return 0, fmt.Errorf("encode tags: %w", err)
	}
	entityIDs, err := encodeStrings(e.EntityIDs)
	if err != nil {
		return 0, fmt.Errorf("encode entity ids: %w", err)
	}

	id := e.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	var storedID string
	var version int
	err = db.writeRow(`
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(run_id, key) DO UPDATE SET
			value = excluded.value,
			author = excluded.author,
			tags = excluded.tags,
			entity_ids = excluded.entity_ids,
			event_date = excluded.event_date,
			created_at = excluded.created_at,
			version = entries.version + 1
		RETURNING id, version
	`, []any{id, e.RunID, e.Key, e.Value, e.Author, tags, entityIDs,
		nullableTime(e.EventDate), formatTime(now)}, &storedID, &version)
	if err != nil {
		return 0, fmt.Errorf("upsert entry: %w", err)
	}

	e.ID = storedID
	e.CreatedAt = now
	e.Version = version
	return version, nil
}

// GetEntry retrieves the entry stored under (runID, key).
// Returns nil, nil if not found.
func (db *DB) GetEntry(runID, key string) (*models.BlackboardEntry, error) {
	row := db.QueryRow(`SELECT `+entryColumns+` FROM entries WHERE run_id = ? AND key = ?`, runID, key)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// QueryEntries returns the run's entries matching f, ordered by creation
// time ascending. With a limit, the most recent matches are kept.
func (db *DB) QueryEntries(runID string, f EntryFilter) ([]models.BlackboardEntry, error) {
	where := []string{"run_id = ?"}
	args := []any{runID}

	if len(f.Tags) > 0 {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(entries.tags) WHERE json_each.value IN (`+placeholders(len(f.Tags))+`))`)
		for _, tag := range f.Tags {
			args = append(args, tag)
		}
	}
	if f.Author != "" {
		where = append(where, "author = ?")
		args = append(args, f.Author)
	}
	if len(f.EntityIDs) > 0 {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(entries.entity_ids) WHERE json_each.value IN (`+placeholders(len(f.EntityIDs))+`))`)
		for _, id := range f.EntityIDs {
			args = append(args, id)
		}
	}

	// Newest first so LIMIT keeps the most recent rows; reversed below.
	query := `SELECT ` + entryColumns + ` FROM entries WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, rowid DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []models.BlackboardEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// CountEntries returns how many entries a run holds.
func (db *DB) CountEntries(runID string) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM entries WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanEntry(s scanner) (*models.BlackboardEntry, error) {
	var e models.BlackboardEntry
	var tags, entityIDs, createdAt string
	var eventDate sql.NullString

	if err := s.Scan(&e.ID, &e.RunID, &e.Key, &e.Value, &e.Author, &tags, &entityIDs,
		&eventDate, &createdAt, &e.Version); err != nil {
		return nil, err
	}

	var err error
	if e.Tags, err = decodeStrings(tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if e.EntityIDs, err = decodeStrings(entityIDs); err != nil {
		return nil, fmt.Errorf("decode entity ids: %w", err)
	}
	e.EventDate = parseNullableTime(eventDate)
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &e, nil
}
