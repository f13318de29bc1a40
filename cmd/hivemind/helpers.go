package main

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"

	"github.com/ShayCichocki/hivemind/internal/agent"
	"github.com/ShayCichocki/hivemind/internal/api"
	"github.com/ShayCichocki/hivemind/internal/config"
	"github.com/ShayCichocki/hivemind/internal/notify"
	"github.com/ShayCichocki/hivemind/internal/planner"
	"github.com/ShayCichocki/hivemind/internal/state"
	"github.com/ShayCichocki/hivemind/internal/toolreg"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

// openStore opens and migrates the configured database.
func (a *cliApp) openStore() (*state.DB, error) {
	db, err := state.Open(a.cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// seedTools syncs tools.registry_file when set, and otherwise registers the
// built-in tools into an empty registry.
func (a *cliApp) seedTools(db *state.DB) error {
	if path := a.cfg.Tools.RegistryFile; path != "" {
		n, err := toolreg.SyncFile(db, path)
		if err != nil {
			return err
		}
		a.logger.Debug("tool registry synced", "path", path, "tools", n)
		return nil
	}

	existing, err := db.ListTools()
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	n, err := toolreg.Sync(db, toolreg.Defaults())
	if err != nil {
		return err
	}
	a.logger.Debug("registered default tools", "tools", n)
	return nil
}

func (a *cliApp) newPlanner() (*planner.Builder, error) {
	pcfg := planner.DefaultConfig()
	if path := a.cfg.Planner.TriggersFile; path != "" {
		loaded, err := planner.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		pcfg = loaded
	}
	return planner.New(pcfg)
}

// newExecutor returns the configured backend. The tracker is nil for the
// dry-run backend.
func (a *cliApp) newExecutor(dryRun bool) (agent.Executor, *api.TokenTracker, error) {
	if dryRun || a.cfg.Executor.Backend == config.BackendDryRun {
		return agent.DryRunExecutor{}, nil, nil
	}

	clientCfg := api.ClientConfig{
		Model:         anthropic.Model(a.cfg.Executor.Model),
		UseAWSBedrock: a.cfg.Anthropic.UseBedrock,
		AWSRegion:     a.cfg.Anthropic.AWSRegion,
		AWSProfile:    a.cfg.Anthropic.AWSProfile,
	}
	if !clientCfg.UseAWSBedrock {
		key, err := config.GetAPIKey(a.cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("%w (set ANTHROPIC_API_KEY or use --dry-run)", err)
		}
		clientCfg.APIKey = key
	}

	client, err := api.NewClient(clientCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create API client: %w", err)
	}
	a.logger.Debug("executor ready", "model", client.Model(), "bedrock", clientCfg.UseAWSBedrock)

	exec := api.NewExecutor(client,
		api.WithMaxTokens(a.cfg.Executor.MaxTokens),
		api.WithLogger(a.logger),
	)
	return exec, client.Tracker(), nil
}

// newNotifier returns a connected event feed client, or nil when
// notify.redis_addr is empty.
func (a *cliApp) newNotifier(ctx context.Context) (*notify.Client, error) {
	if a.cfg.Notify.RedisAddr == "" {
		return nil, nil
	}
	c := notify.NewClient(&redis.Options{
		Addr:     a.cfg.Notify.RedisAddr,
		Password: a.cfg.Notify.RedisPassword,
		DB:       a.cfg.Notify.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("connect to %s: %w", a.cfg.Notify.RedisAddr, err)
	}
	return c, nil
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func runStatusColor(s models.RunStatus) *color.Color {
	switch s {
	case models.RunStatusCompleted:
		return color.New(color.FgGreen)
	case models.RunStatusFailed:
		return color.New(color.FgRed)
	case models.RunStatusRunning, models.RunStatusPlanning:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}

func taskStatusSymbol(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusCompleted:
		return color.GreenString("✓")
	case models.TaskStatusFailed:
		return color.RedString("✗")
	case models.TaskStatusRunning:
		return color.CyanString("●")
	default:
		return color.HiBlackString("○")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
