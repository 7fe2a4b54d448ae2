package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"photo-ingest/internal/logging"
	"photo-ingest/internal/metrics"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "cache_entries"

// RedisConfig configures a RedisFeed.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisFeed publishes and consumes events over a Redis pub/sub channel.
type RedisFeed struct {
	client  *redis.Client
	channel string
}

// NewRedisFeed connects to Redis and verifies the connection.
func NewRedisFeed(ctx context.Context, cfg RedisConfig) (*RedisFeed, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisFeed{client: client, channel: channel}, nil
}

// Channel returns the pub/sub channel name.
func (f *RedisFeed) Channel() string { return f.channel }

// Publish sends ev to every subscriber of the channel.
func (f *RedisFeed) Publish(ctx context.Context, ev Event) error {
	if err := ev.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s on %s: %w", ev.Type, f.channel, err)
	}
	return nil
}

// Run subscribes to the channel and calls handler for every well-formed
// event until ctx is done. Malformed payloads are logged and skipped.
func (f *RedisFeed) Run(ctx context.Context, handler func(Event)) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading messages.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	logging.Info("Change feed subscribed to %s", f.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("change feed subscription closed")
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				metrics.ChangeFeedErrors.Inc()
				logging.Logger().Warn().
					Str("channel", f.channel).
					Err(err).
					Msg("skipping malformed change event")
				continue
			}
			handler(ev)
		}
	}
}

// Ping checks the Redis connection.
func (f *RedisFeed) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (f *RedisFeed) Close() error {
	return f.client.Close()
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	kind, err := ParseChangeKind(string(ev.Type))
	if err != nil {
		return Event{}, err
	}
	ev.Type = kind
	if err := ev.validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}
