package state

import (
	"testing"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

func TestRegisterTool_Upsert(t *testing.T) {
	db := setupTestDB(t)

	if err := db.RegisterTool(&models.Tool{Name: "shell", Description: "run commands", Instructions: "v1"}); err != nil {
		t.Fatalf("RegisterTool failed: %v", err)
	}
	first, err := db.GetTool("shell")
	if err != nil || first == nil {
		t.Fatalf("GetTool = %v, %v", first, err)
	}

	if err := db.RegisterTool(&models.Tool{Name: "shell", Description: "run shell commands", Instructions: "v2"}); err != nil {
		t.Fatalf("RegisterTool (update) failed: %v", err)
	}
	got, err := db.GetTool("shell")
	if err != nil {
		t.Fatalf("GetTool failed: %v", err)
	}
	if got.Instructions != "v2" || got.Description != "run shell commands" {
		t.Errorf("tool = %+v, want updated description and instructions", got)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", first.CreatedAt, got.CreatedAt)
	}
	if got.UpdatedAt.Before(first.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards")
	}
}

func TestRegisterTool_RequiresName(t *testing.T) {
	db := setupTestDB(t)

	if err := db.RegisterTool(&models.Tool{}); err == nil {
		t.Error("expected error for empty tool name")
	}
}

func TestGetTool_NotFound(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.GetTool("missing")
	if err != nil {
		t.Fatalf("GetTool failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetTool = %+v, want nil", got)
	}
}

func TestListTools_SortedByName(t *testing.T) {
	db := setupTestDB(t)

	for _, name := range []string{"web_search", "file_read", "shell"} {
		if err := db.RegisterTool(&models.Tool{Name: name}); err != nil {
			t.Fatalf("RegisterTool failed: %v", err)
		}
	}

	names, err := db.ToolNames()
	if err != nil {
		t.Fatalf("ToolNames failed: %v", err)
	}
	want := []string{"file_read", "shell", "web_search"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestSaveAndListArtifacts(t *testing.T) {
	db := setupRunDB(t, "run-1")

	a := &models.Artifact{RunID: "run-1", TaskID: "task-1", Name: "report.md", ContentType: "text/markdown", Content: []byte("# Report")}
	b := &models.Artifact{RunID: "run-1", TaskID: "task-1", Name: "data.json", Content: []byte(`{}`)}
	for _, art := range []*models.Artifact{a, b} {
		if err := db.SaveArtifact(art); err != nil {
			t.Fatalf("SaveArtifact failed: %v", err)
		}
	}
	if a.ID == "" || a.CreatedAt.IsZero() {
		t.Error("SaveArtifact did not fill id and timestamp")
	}
	if b.ContentType != "text/plain" {
		t.Errorf("default content type = %q, want text/plain", b.ContentType)
	}

	got, err := db.ListArtifacts("run-1")
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(artifacts) = %d, want 2", len(got))
	}
	if got[0].Name != "report.md" || string(got[0].Content) != "# Report" {
		t.Errorf("artifacts[0] = %+v", got[0])
	}
	if got[1].Name != "data.json" {
		t.Errorf("artifacts[1] = %+v", got[1])
	}
}
