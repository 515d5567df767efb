// Package redis publishes swap outcomes over Redis Pub/Sub and Streams.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"serum-swap/internal/bus"
	"serum-swap/internal/observability"
	"serum-swap/internal/storage"
)

// streamMaxLen is the approximate maximum length for the outcome stream,
// enforced via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

const transport = "redis"

// Config holds connection parameters and destinations.
type Config struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool

	// Channel receives every outcome via PUBLISH. Empty disables Pub/Sub.
	Channel string
	// Stream receives every outcome via XADD. Empty disables the stream.
	Stream string
}

// StreamMessage is a single entry read back from the outcome stream.
type StreamMessage struct {
	ID     string
	Record *storage.SwapOutcomeRecord
}

// Publisher implements bus.Publisher using Redis Pub/Sub for ephemeral
// fan-out and Redis Streams for durable, ordered delivery.
type Publisher struct {
	rdb     *redis.Client
	channel string
	stream  string
}

// New connects, pings and returns a Publisher.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Channel == "" && cfg.Stream == "" {
		return nil, errors.New("redis: channel or stream must be set")
	}

	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Publisher{rdb: rdb, channel: cfg.Channel, stream: cfg.Stream}, nil
}

// Publish sends the record to the channel and appends it to the stream.
func (p *Publisher) Publish(ctx context.Context, record *storage.SwapOutcomeRecord) (err error) {
	defer func() { observability.RecordPublish(transport, err) }()

	payload, err := bus.Encode(record)
	if err != nil {
		return err
	}

	if p.channel != "" {
		if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
			return fmt.Errorf("redis: publish %s: %w", p.channel, err)
		}
	}

	if p.stream != "" {
		args := &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"payload": payload,
			},
		}
		if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("redis: stream append %s: %w", p.stream, err)
		}
	}

	return nil
}

// Subscribe returns decoded records published to the channel. The returned
// channel is closed when ctx is cancelled. Undecodable payloads are dropped.
func (p *Publisher) Subscribe(ctx context.Context) (<-chan *storage.SwapOutcomeRecord, error) {
	if p.channel == "" {
		return nil, errors.New("redis: no channel configured")
	}

	pubsub := p.rdb.Subscribe(ctx, p.channel)

	// Wait for the subscription confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", p.channel, err)
	}

	out := make(chan *storage.SwapOutcomeRecord, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				record, err := bus.Decode([]byte(msg.Payload))
				if err != nil {
					continue
				}
				select {
				case out <- record:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// StreamRead reads up to count records after lastID. Use "0" to read from
// the beginning. Returns an empty slice (not an error) when nothing is
// available.
func (p *Publisher) StreamRead(ctx context.Context, lastID string, count int) ([]StreamMessage, error) {
	if p.stream == "" {
		return nil, errors.New("redis: no stream configured")
	}

	results, err := p.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{p.stream, lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", p.stream, err)
	}

	var messages []StreamMessage
	for _, s := range results {
		for _, msg := range s.Messages {
			var data []byte
			switch v := msg.Values["payload"].(type) {
			case string:
				data = []byte(v)
			case []byte:
				data = v
			default:
				continue
			}

			record, err := bus.Decode(data)
			if err != nil {
				return nil, err
			}
			messages = append(messages, StreamMessage{ID: msg.ID, Record: record})
		}
	}

	return messages, nil
}

// Close closes the underlying client.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}

// Compile-time interface check.
var _ bus.Publisher = (*Publisher)(nil)
