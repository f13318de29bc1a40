package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	path := filepath.Join(nested, "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Files cannot be created under /proc on Linux.
	_, err := Open("/proc/nonexistent/test.db")
	if err == nil {
		t.Error("expected error opening db at invalid path")
	}
}

func TestOpen_PragmasApplyToEveryConnection(t *testing.T) {
	db := setupTestDB(t)

	// Hold one connection busy so the next query is served by another.
	rows, err := db.Query("SELECT 1")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys failed: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode failed: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	_, err = db.Query("SELECT 1")
	if err == nil {
		t.Error("expected error after close, got nil")
	}
}

func TestMigrate(t *testing.T) {
	db := setupTestDB(t)

	tables := []string{"schema_version", "runs", "tasks", "entries", "artifacts", "tools"}
	for _, table := range tables {
		var count int
		row := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&count); err != nil {
			t.Errorf("failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate (iteration %d) failed: %v", i, err)
		}
	}

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != 5 {
		t.Errorf("schema version = %d, want 5", version)
	}

	var rows int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&rows); err != nil {
		t.Fatalf("count schema_version: %v", err)
	}
	if rows != 5 {
		t.Errorf("schema_version rows = %d, want 5", rows)
	}
}

func TestFormatTime_SortsLexically(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(1 * time.Nanosecond),
		base.Add(999 * time.Millisecond),
		base.Add(1 * time.Second),
		base.Add(10 * time.Hour),
	}

	for i := 1; i < len(times); i++ {
		prev, cur := formatTime(times[i-1]), formatTime(times[i])
		if !(prev < cur) {
			t.Errorf("formatTime(%v)=%q not < formatTime(%v)=%q", times[i-1], prev, times[i], cur)
		}
	}

	got, err := parseTime(formatTime(times[1]))
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}
	if !got.Equal(times[1]) {
		t.Errorf("parseTime round trip = %v, want %v", got, times[1])
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)

	finishedAt := time.Now().Add(-47 * time.Hour)
	old := newTestRun("old")
	old.Status = models.RunStatusCompleted
	old.StartedAt = time.Now().Add(-48 * time.Hour)
	old.CompletedAt = &finishedAt

	oldFailed := newTestRun("old-failed")
	oldFailed.Status = models.RunStatusFailed
	oldFailed.StartedAt = time.Now().Add(-48 * time.Hour)
	oldFailed.CompletedAt = &finishedAt

	// Still running in another process; must survive.
	active := newTestRun("active")
	active.Status = models.RunStatusRunning
	active.StartedAt = time.Now().Add(-48 * time.Hour)

	recentAt := time.Now().Add(-time.Hour)
	fresh := newTestRun("fresh")
	fresh.Status = models.RunStatusCompleted
	fresh.StartedAt = time.Now().Add(-2 * time.Hour)
	fresh.CompletedAt = &recentAt

	for _, r := range []*models.Run{old, oldFailed, active, fresh} {
		if err := db.CreateRun(r); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	n, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns failed: %v", err)
	}
	if n != 2 {
		t.Errorf("purged %d runs, want 2", n)
	}

	for id, wantKept := range map[string]bool{"old": false, "old-failed": false, "active": true, "fresh": true} {
		got, err := db.GetRun(id)
		if err != nil {
			t.Fatalf("GetRun(%s) failed: %v", id, err)
		}
		if (got != nil) != wantKept {
			t.Errorf("run %s present = %v, want %v", id, got != nil, wantKept)
		}
	}
}
