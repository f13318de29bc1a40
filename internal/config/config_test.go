package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points every config source at temp directories.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("ANTHROPIC_API_KEY", "")

	work := filepath.Join(root, "work")
	if err := os.MkdirAll(work, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Chdir(work)
	return root
}

func TestDefault(t *testing.T) {
	root := isolate(t)
	cfg := Default()

	if cfg.Executor.Backend != BackendAnthropic {
		t.Errorf("expected backend %q, got %q", BackendAnthropic, cfg.Executor.Backend)
	}
	if cfg.Executor.Timeout != 300*time.Second {
		t.Errorf("expected timeout 300s, got %v", cfg.Executor.Timeout)
	}
	if cfg.Executor.MaxTokens != 8192 {
		t.Errorf("expected max tokens 8192, got %d", cfg.Executor.MaxTokens)
	}
	if cfg.Context.MaxEntries != 20 {
		t.Errorf("expected max entries 20, got %d", cfg.Context.MaxEntries)
	}
	if cfg.TUI.RefreshRate != 500*time.Millisecond {
		t.Errorf("expected refresh rate 500ms, got %v", cfg.TUI.RefreshRate)
	}
	wantDB := filepath.Join(root, "data", "hivemind", "hivemind.db")
	if cfg.Database.Path != wantDB {
		t.Errorf("expected database path %q, got %q", wantDB, cfg.Database.Path)
	}
	if cfg.Notify.RedisAddr != "" {
		t.Errorf("expected event feed disabled, got %q", cfg.Notify.RedisAddr)
	}
}

func TestLoadFromPath(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configContent := `
executor:
  backend: dry-run
  timeout: 45s
  max_tokens: 2048
anthropic:
  api_key: test-key
  use_bedrock: true
  aws_region: us-west-2
context:
  max_entries: 5
notify:
  redis_addr: localhost:6379
log:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Executor.Backend != BackendDryRun {
		t.Errorf("expected backend dry-run, got %q", cfg.Executor.Backend)
	}
	if cfg.Executor.Timeout != 45*time.Second {
		t.Errorf("expected timeout 45s, got %v", cfg.Executor.Timeout)
	}
	if cfg.Executor.MaxTokens != 2048 {
		t.Errorf("expected max tokens 2048, got %d", cfg.Executor.MaxTokens)
	}
	if !cfg.Anthropic.UseBedrock || cfg.Anthropic.AWSRegion != "us-west-2" {
		t.Errorf("bedrock settings = %+v", cfg.Anthropic)
	}
	if cfg.Context.MaxEntries != 5 {
		t.Errorf("expected max entries 5, got %d", cfg.Context.MaxEntries)
	}
	if cfg.Notify.RedisAddr != "localhost:6379" {
		t.Errorf("expected redis addr, got %q", cfg.Notify.RedisAddr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.Log.Level)
	}
	// Untouched keys keep their defaults.
	if cfg.TUI.RefreshRate != 500*time.Millisecond {
		t.Errorf("expected default refresh rate, got %v", cfg.TUI.RefreshRate)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	isolate(t)
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "executor:\n  backend: openai\n"},
		{"zero timeout", "executor:\n  timeout: 0s\n"},
		{"zero max entries", "context:\n  max_entries: 0\n"},
		{"bad yaml", "executor: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := LoadFromPath(path); err == nil {
				t.Error("expected an error")
			}
		})
	}

	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_Precedence(t *testing.T) {
	root := isolate(t)

	userDir := filepath.Join(root, "config", "hivemind")
	if err := os.MkdirAll(userDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	user := "executor:\n  model: user-model\n  timeout: 60s\ncontext:\n  max_entries: 7\n"
	if err := os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte(user), 0644); err != nil {
		t.Fatalf("write user config: %v", err)
	}

	// Project file sits in a parent of the working directory.
	project := "executor:\n  model: project-model\n"
	if err := os.WriteFile(filepath.Join(root, ProjectConfigName), []byte(project), 0644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	t.Setenv("HIVEMIND_CONTEXT_MAX_ENTRIES", "3")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Executor.Model != "project-model" {
		t.Errorf("model = %q, want project override", cfg.Executor.Model)
	}
	if cfg.Executor.Timeout != 60*time.Second {
		t.Errorf("timeout = %v, want user value", cfg.Executor.Timeout)
	}
	if cfg.Context.MaxEntries != 3 {
		t.Errorf("max entries = %d, want env override", cfg.Context.MaxEntries)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("api key = %q, want env value", cfg.Anthropic.APIKey)
	}
	if GetProjectConfigPath() != filepath.Join(root, ProjectConfigName) {
		t.Errorf("project config path = %q", GetProjectConfigPath())
	}
}

func TestSetUserValue(t *testing.T) {
	isolate(t)

	if err := SetUserValue("executor.timeout", "90s"); err != nil {
		t.Fatalf("SetUserValue failed: %v", err)
	}
	if err := SetUserValue("notify.redis_addr", "127.0.0.1:6379"); err != nil {
		t.Fatalf("SetUserValue failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Executor.Timeout != 90*time.Second {
		t.Errorf("timeout = %v, want 90s", cfg.Executor.Timeout)
	}
	if cfg.Notify.RedisAddr != "127.0.0.1:6379" {
		t.Errorf("redis addr = %q", cfg.Notify.RedisAddr)
	}

	got, err := Lookup("executor.timeout")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got != "90s" {
		t.Errorf("Lookup = %v, want 90s", got)
	}

	if err := SetUserValue("executor.backend", "gpt"); err == nil {
		t.Error("invalid backend accepted")
	}
	if err := SetUserValue("no.such.key", "x"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("err = %v, want ErrUnknownKey", err)
	}
	if _, err := Lookup("no.such.key"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Lookup err = %v, want ErrUnknownKey", err)
	}
}

func TestSave(t *testing.T) {
	isolate(t)

	cfg := Default()
	cfg.Executor.Backend = BackendDryRun
	cfg.Executor.Timeout = 2 * time.Minute
	cfg.Context.MaxEntries = 11
	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Executor.Backend != BackendDryRun || loaded.Executor.Timeout != 2*time.Minute || loaded.Context.MaxEntries != 11 {
		t.Errorf("loaded = %+v", loaded.Executor)
	}
}

func TestKnownKeys(t *testing.T) {
	keys := KnownKeys()
	for _, want := range []string{"database.path", "executor.backend", "executor.timeout", "context.max_entries", "notify.redis_addr", "planner.triggers_file"} {
		if !IsKnownKey(want) {
			t.Errorf("%s is not a known key", want)
		}
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/x/db"); got != filepath.Join(home, "x", "db") {
		t.Errorf("expandHome = %q", got)
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("expandHome = %q", got)
	}
}
