package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pairchat/internal/core/domain"
	"pairchat/internal/core/ports"
	"pairchat/pkg/circuitbreaker"
	"pairchat/pkg/retry"
	"pairchat/pkg/tracing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PublisherOptions selects where lifecycle events go. Either target may be
// left empty.
type PublisherOptions struct {
	Channel      string
	StreamKey    string
	StreamMaxLen int64
	Retry        retry.Config
	Breaker      circuitbreaker.Config
}

// EventPublisher fans lifecycle events out over Pub/Sub for live consumers
// and appends them to a capped stream for history.
type EventPublisher struct {
	client  *redis.Client
	opts    PublisherOptions
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

var _ ports.EventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(client *redis.Client, opts PublisherOptions, logger *zap.SugaredLogger) *EventPublisher {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	breaker := circuitbreaker.New(opts.Breaker)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("redis event sink breaker changed state",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return &EventPublisher{
		client:  client,
		opts:    opts,
		breaker: breaker,
		logger:  logger,
	}
}

func (p *EventPublisher) Publish(ctx context.Context, event domain.LifecycleEvent) error {
	ctx, span := tracing.TracePublish(ctx, "redis", string(event.Type))
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	// While Redis is down the breaker sheds events instead of retrying each.
	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Retry(ctx, p.opts.Retry, func(ctx context.Context) error {
			pipe := p.client.Pipeline()
			if p.opts.Channel != "" {
				pipe.Publish(ctx, p.opts.Channel, data)
			}
			if p.opts.StreamKey != "" {
				pipe.XAdd(ctx, streamArgs(p.opts.StreamKey, p.opts.StreamMaxLen, event, data))
			}
			_, err := pipe.Exec(ctx)
			return err
		})
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("dropped %s: %w", event.Type, err)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	p.logger.Debugw("published lifecycle event",
		"type", event.Type,
		"session_id", event.SessionID,
	)
	return nil
}

func (p *EventPublisher) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *EventPublisher) Close() error {
	return CloseRedisClient(p.client)
}

// streamArgs builds the XADD call for one event. The type and session are
// duplicated as fields so consumers can filter without decoding data.
func streamArgs(key string, maxLen int64, event domain.LifecycleEvent, data []byte) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: key,
		MaxLen: maxLen,
		Approx: maxLen > 0,
		Values: map[string]interface{}{
			"type":       string(event.Type),
			"session_id": string(event.SessionID),
			"data":       string(data),
		},
	}
}
