// Package toolreg loads tool registry files and keeps the store in sync
// with them.
package toolreg

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/hivemind/internal/state"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// File is the on-disk registry format.
type File struct {
	Tools []models.Tool `yaml:"tools"`
}

// Defaults returns the built-in tool set.
func Defaults() []models.Tool {
	tools, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("toolreg: built-in defaults: %v", err))
	}
	return tools
}

// Parse decodes and validates a registry document. Names are trimmed and
// must be unique.
func Parse(data []byte) ([]models.Tool, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tool registry: %w", err)
	}

	seen := make(map[string]bool, len(f.Tools))
	for i := range f.Tools {
		t := &f.Tools[i]
		t.Name = strings.TrimSpace(t.Name)
		t.Description = strings.TrimSpace(t.Description)
		t.Instructions = strings.TrimSpace(t.Instructions)
		if t.Name == "" {
			return nil, fmt.Errorf("tool registry: entry %d has no name", i+1)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("tool registry: duplicate tool %q", t.Name)
		}
		seen[t.Name] = true
	}
	return f.Tools, nil
}

// Load reads and parses a registry file.
func Load(path string) ([]models.Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool registry: %w", err)
	}
	tools, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tools, nil
}

// Sync registers every tool, replacing stored descriptions and
// instructions. Tools missing from the list are left in place.
func Sync(store state.ToolStore, tools []models.Tool) (int, error) {
	for i := range tools {
		t := tools[i]
		if err := store.RegisterTool(&t); err != nil {
			return i, fmt.Errorf("register tool %s: %w", t.Name, err)
		}
	}
	return len(tools), nil
}

// SyncFile loads path and syncs it into store.
func SyncFile(store state.ToolStore, path string) (int, error) {
	tools, err := Load(path)
	if err != nil {
		return 0, err
	}
	return Sync(store, tools)
}

// Marshal renders tools in the registry file format.
func Marshal(tools []models.Tool) ([]byte, error) {
	out, err := yaml.Marshal(File{Tools: tools})
	if err != nil {
		return nil, fmt.Errorf("marshal tool registry: %w", err)
	}
	return out, nil
}
