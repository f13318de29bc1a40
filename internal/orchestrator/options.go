package orchestrator

import (
	"log/slog"
	"time"
)

// DefaultEventBuffer is the event channel capacity.
const DefaultEventBuffer = 256

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	logger         *slog.Logger
	timeout        time.Duration
	maxContext     int
	eventBuffer    int
	availableTools []string
	toolsSet       bool
}

func defaultOptions() orchestratorOptions {
	return orchestratorOptions{
		logger:      slog.New(slog.DiscardHandler),
		eventBuffer: DefaultEventBuffer,
		maxContext:  DefaultMaxContextEntries,
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *orchestratorOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTimeout sets the per-task executor timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.timeout = d }
}

// WithMaxContextEntries caps the blackboard entries handed to each task.
func WithMaxContextEntries(n int) Option {
	return func(o *orchestratorOptions) {
		if n > 0 {
			o.maxContext = n
		}
	}
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) {
		if n >= 0 {
			o.eventBuffer = n
		}
	}
}

// WithAvailableTools fixes the tool set offered to the planner. Without it
// every tool in the registry is available.
func WithAvailableTools(tools []string) Option {
	return func(o *orchestratorOptions) {
		o.availableTools = append([]string(nil), tools...)
		o.toolsSet = true
	}
}
