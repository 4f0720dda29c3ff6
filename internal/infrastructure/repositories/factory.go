package repositories

import (
	"context"

	"pairchat/internal/core/ports"
	"pairchat/internal/infrastructure/repositories/memory"
	redisrepo "pairchat/internal/infrastructure/repositories/redis"
	"pairchat/pkg/circuitbreaker"
	"pairchat/pkg/config"
	"pairchat/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const memoryHistorySize = 1000

// PublisherFactory picks the lifecycle event sink, falling back to memory
// when Redis is disabled or unreachable.
type PublisherFactory struct {
	useRedis    bool
	redisClient *redis.Client
	cfg         *config.Config
	logger      *zap.SugaredLogger
}

// NewPublisherFactory connects to Redis when it is enabled.
func NewPublisherFactory(cfg *config.Config, logger *zap.SugaredLogger) *PublisherFactory {
	factory := &PublisherFactory{
		useRedis: cfg.Redis.Enabled,
		cfg:      cfg,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(redisrepo.ClientOptions{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			StreamKey: cfg.Redis.StreamKey,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to in-memory event publisher",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Infow("publishing lifecycle events to Redis",
				"channel", cfg.Redis.Channel,
				"stream", cfg.Redis.StreamKey,
			)
		}
	}

	if !factory.useRedis {
		logger.Info("keeping lifecycle events in memory")
	}

	return factory
}

// UsingRedis reports whether events go to Redis.
func (f *PublisherFactory) UsingRedis() bool {
	return f.useRedis && f.redisClient != nil
}

// CreateEventPublisher returns the Redis publisher or the in-memory fallback.
func (f *PublisherFactory) CreateEventPublisher() ports.EventPublisher {
	if f.UsingRedis() {
		return redisrepo.NewEventPublisher(f.redisClient, redisrepo.PublisherOptions{
			Channel:      f.cfg.Redis.Channel,
			StreamKey:    f.cfg.Redis.StreamKey,
			StreamMaxLen: f.cfg.Redis.StreamMaxLen,
			Retry:        retry.DefaultConfig(),
			Breaker:      circuitbreaker.DefaultConfig(),
		}, f.logger)
	}
	return memory.NewEventPublisher(memoryHistorySize)
}

// Close closes the Redis connection if one was opened.
func (f *PublisherFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck pings Redis when it is in use.
func (f *PublisherFactory) HealthCheck(ctx context.Context) error {
	if f.UsingRedis() {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
