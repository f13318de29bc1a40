// Package notify publishes run events over Redis pub/sub so other processes
// can follow a run.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ShayCichocki/hivemind/internal/orchestrator"
)

// GlobalChannel carries the events of every run.
const GlobalChannel = "hivemind:events"

// RunChannel returns the channel carrying the events of one run.
func RunChannel(runID string) string {
	return GlobalChannel + ":" + runID
}

// Client publishes and subscribes to run events. It is safe for concurrent
// use.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a Client for the given Redis options.
func NewClient(opts *redis.Options) *Client {
	return &Client{rdb: redis.NewClient(opts)}
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Publish sends ev to the global channel and to its run channel.
// Delivery is at most once.
func (c *Client) Publish(ctx context.Context, ev orchestrator.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := c.rdb.Pipeline()
	pipe.Publish(ctx, GlobalChannel, payload)
	if ev.RunID != "" {
		pipe.Publish(ctx, RunChannel(ev.RunID), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

// Forward publishes every event read from events until the channel closes
// or ctx is done. Publish failures go to onErr when it is non-nil and do not
// stop forwarding.
func (c *Client) Forward(ctx context.Context, events <-chan orchestrator.Event, onErr func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.Publish(ctx, ev); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}

// Subscription delivers decoded events until closed.
type Subscription struct {
	events chan orchestrator.Event
	errors chan error
	cancel context.CancelFunc
}

// Events returns the event channel. It closes when the subscription ends.
func (s *Subscription) Events() <-chan orchestrator.Event {
	return s.events
}

// Errors returns decode errors. It closes when the subscription ends.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription.
func (s *Subscription) Close() error {
	s.cancel()
	return nil
}

// Subscribe follows one run, or every run when runID is empty. The
// subscription is confirmed by Redis before Subscribe returns.
func (c *Client) Subscribe(ctx context.Context, runID string) (*Subscription, error) {
	channel := GlobalChannel
	if runID != "" {
		channel = RunChannel(runID)
	}

	pubsub := c.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	events := make(chan orchestrator.Event, 16)
	errs := make(chan error, 4)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(events)
		defer close(errs)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev orchestrator.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errs <- fmt.Errorf("decode event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case events <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{events: events, errors: errs, cancel: cancel}, nil
}
