package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"trader-alpha-lab/internal/domain"
	"trader-alpha-lab/internal/observability"
)

// Default Redis keys for candidate delivery.
const (
	DefaultQueueKey   = "alpha:candidates"
	DefaultPubChannel = "alpha:candidates:events"
)

// RedisSink delivers candidate events through Redis: each event is
// pushed onto a list for queue consumers and published on a channel for
// live subscribers. Both writes carry the same JSON payload.
type RedisSink struct {
	client     *redis.Client
	queueKey   string
	pubChannel string
}

// RedisSinkOption configures RedisSink.
type RedisSinkOption func(*RedisSink)

// WithQueueKey overrides the list key.
func WithQueueKey(key string) RedisSinkOption {
	return func(s *RedisSink) { s.queueKey = key }
}

// WithPubChannel overrides the publish channel.
func WithPubChannel(channel string) RedisSinkOption {
	return func(s *RedisSink) { s.pubChannel = channel }
}

// NewRedisSink creates a sink on an existing Redis client.
func NewRedisSink(client *redis.Client, opts ...RedisSinkOption) *RedisSink {
	s := &RedisSink{
		client:     client,
		queueKey:   DefaultQueueKey,
		pubChannel: DefaultPubChannel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ CandidateSink = (*RedisSink)(nil)

// Publish pushes the event onto the queue and announces it on the
// channel. The queue write is authoritative; a failed channel publish
// fails the call so the scheduler can count it.
func (s *RedisSink) Publish(ctx context.Context, event *domain.CandidateEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		err = fmt.Errorf("marshal candidate event: %w", err)
		observability.RecordPublish(err)
		return err
	}

	if err := s.client.RPush(ctx, s.queueKey, payload).Err(); err != nil {
		err = fmt.Errorf("rpush candidate event: %w", err)
		observability.RecordPublish(err)
		return err
	}
	if err := s.client.Publish(ctx, s.pubChannel, payload).Err(); err != nil {
		err = fmt.Errorf("publish candidate event: %w", err)
		observability.RecordPublish(err)
		return err
	}

	observability.RecordPublish(nil)
	return nil
}

// Close closes the Redis client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
