// Package config handles configuration loading and management for hivemind.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: HIVEMIND_EXECUTOR_TIMEOUT
// overrides executor.timeout.
const EnvPrefix = "HIVEMIND"

// ProjectConfigName is the per-project override file searched upward from
// the working directory.
const ProjectConfigName = ".hivemind.yaml"

// Executor backends.
const (
	BackendAnthropic = "anthropic"
	BackendDryRun    = "dry-run"
)

// ErrUnknownKey is returned for keys that are not part of Config.
var ErrUnknownKey = errors.New("unknown config key")

// Config holds all configuration for hivemind.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Context   ContextConfig   `mapstructure:"context"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Log       LogConfig       `mapstructure:"log"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ExecutorConfig selects and bounds the task executor.
type ExecutorConfig struct {
	// Backend is "anthropic" or "dry-run".
	Backend string `mapstructure:"backend"`
	// Model is the Claude model name. Empty uses the client default.
	Model string `mapstructure:"model"`
	// Timeout bounds a single task.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxTokens caps a single task response.
	MaxTokens int64 `mapstructure:"max_tokens"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// ContextConfig bounds the context handed to each task.
type ContextConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// PlannerConfig points at an optional trigger override file.
type PlannerConfig struct {
	TriggersFile string `mapstructure:"triggers_file"`
}

// ToolsConfig points at the tool registry file.
type ToolsConfig struct {
	RegistryFile string `mapstructure:"registry_file"`
}

// NotifyConfig enables the Redis event feed when RedisAddr is set.
type NotifyConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, HIVEMIND_*)
// 2. Project config (.hivemind.yaml in current directory or parent)
// 3. User config (~/.config/hivemind/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", EnvPrefix+"_ANTHROPIC_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding api key env: %w", err)
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.Database.Path = expandHome(cfg.Database.Path)
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.Planner.TriggersFile = expandHome(cfg.Planner.TriggersFile)
	cfg.Tools.RegistryFile = expandHome(cfg.Tools.RegistryFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Executor.Backend {
	case BackendAnthropic, BackendDryRun:
	default:
		return fmt.Errorf("executor.backend: unknown backend %q (want %s or %s)", c.Executor.Backend, BackendAnthropic, BackendDryRun)
	}
	if c.Executor.Timeout <= 0 {
		return fmt.Errorf("executor.timeout must be positive, got %s", c.Executor.Timeout)
	}
	if c.Context.MaxEntries <= 0 {
		return fmt.Errorf("context.max_entries must be positive, got %d", c.Context.MaxEntries)
	}
	return nil
}

// Lookup returns the effective value of key after every source is applied.
func Lookup(key string) (any, error) {
	if !IsKnownKey(key) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return v.Get(key), nil
}

// SetUserValue writes one key to the user config file, keeping the others.
func SetUserValue(key, value string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	dir := getUserConfigDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading user config: %w", err)
		}
	}
	v.Set(key, value)

	// Reject values that would make the next Load fail.
	check := viper.New()
	setDefaults(check)
	if err := check.MergeConfigMap(v.AllSettings()); err != nil {
		return fmt.Errorf("merging config: %w", err)
	}
	if _, err := decode(check); err != nil {
		return err
	}

	return v.WriteConfigAs(path)
}

// Save writes the whole configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.Set("database.path", cfg.Database.Path)
	v.Set("executor.backend", cfg.Executor.Backend)
	v.Set("executor.model", cfg.Executor.Model)
	v.Set("executor.timeout", cfg.Executor.Timeout.String())
	v.Set("executor.max_tokens", cfg.Executor.MaxTokens)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("context.max_entries", cfg.Context.MaxEntries)
	v.Set("planner.triggers_file", cfg.Planner.TriggersFile)
	v.Set("tools.registry_file", cfg.Tools.RegistryFile)
	v.Set("notify.redis_addr", cfg.Notify.RedisAddr)
	v.Set("notify.redis_password", cfg.Notify.RedisPassword)
	v.Set("notify.redis_db", cfg.Notify.RedisDB)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfigAs(filepath.Join(userConfigDir, "config.yaml"))
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// KnownKeys returns every configuration key in sorted order.
func KnownKeys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key is a configuration key.
func IsKnownKey(key string) bool {
	for _, k := range KnownKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(DataDir(), "hivemind.db"))

	v.SetDefault("executor.backend", BackendAnthropic)
	v.SetDefault("executor.model", "")
	v.SetDefault("executor.timeout", "300s")
	v.SetDefault("executor.max_tokens", 8192)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("context.max_entries", 20)
	v.SetDefault("planner.triggers_file", "")
	v.SetDefault("tools.registry_file", "")

	v.SetDefault("notify.redis_addr", "")
	v.SetDefault("notify.redis_password", "")
	v.SetDefault("notify.redis_db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(DataDir(), "logs", "hivemind.log"))

	v.SetDefault("tui.refresh_rate", "500ms")
}

// Default returns a Config with default values.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults: %v", err))
	}
	return cfg
}

// DataDir returns the XDG data directory for hivemind.
func DataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "hivemind")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "hivemind")
	}
	return filepath.Join(home, ".local", "share", "hivemind")
}

// getUserConfigDir returns the XDG config directory for hivemind.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hivemind")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "hivemind")
	}
	return filepath.Join(home, ".config", "hivemind")
}

// findProjectConfig searches for .hivemind.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
