package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	schemaVersionKey     = "pairchat:schema:version"
	currentSchemaVersion = 1

	// HistoryConsumerGroup is the group downstream archivers read the
	// history stream with.
	HistoryConsumerGroup = "archivers"
)

// Migration is one step of the Redis key layout.
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client, streamKey string) error
}

// Migrate runs all pending migrations.
func Migrate(ctx context.Context, client *redis.Client, streamKey string, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Debugw("schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}
		if err := migration.Up(ctx, client, streamKey); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			// The history stream and its archiver group exist before the
			// first event is appended.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client, streamKey string) error {
				if streamKey == "" {
					return nil
				}
				err := client.XGroupCreateMkStream(ctx, streamKey, HistoryConsumerGroup, "0").Err()
				if err != nil && !isBusyGroup(err) {
					return err
				}
				return nil
			},
		},
	}
}

func isBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}
