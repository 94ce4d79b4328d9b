package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/pharmacy-order-relay/internal/config"
	"github.com/wolfman30/pharmacy-order-relay/internal/conversation"
	"github.com/wolfman30/pharmacy-order-relay/internal/events"
	"github.com/wolfman30/pharmacy-order-relay/internal/orders"
	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildStateStore keeps thread state in Redis when a client is available and
// in process memory otherwise.
func BuildStateStore(client *redis.Client, cfg *appconfig.Config, logger *logging.Logger) conversation.StateStore {
	if logger == nil {
		logger = logging.Default()
	}
	if client == nil {
		logger.Warn("redis not configured; thread state is kept in memory")
		return conversation.NewMemoryStateStore()
	}
	var ttl time.Duration
	if cfg != nil {
		ttl = cfg.ConversationTTL
	}
	return conversation.NewRedisStateStore(client, ttl, nil)
}

// BuildOrderStore picks Postgres when a pool is available. The memory store
// only exists for local runs; orders are lost on restart.
func BuildOrderStore(pool *pgxpool.Pool, logger *logging.Logger) orders.Store {
	if pool == nil {
		if logger == nil {
			logger = logging.Default()
		}
		logger.Warn("DATABASE_URL not set; orders are kept in memory")
		return orders.NewMemoryStore()
	}
	return orders.NewPostgresStore(pool)
}

// BuildTranscriptStore returns nil when there is no database handle.
func BuildTranscriptStore(sqlDB *sql.DB) *conversation.TranscriptStore {
	if sqlDB == nil {
		return nil
	}
	return conversation.NewTranscriptStore(sqlDB)
}

// BuildProcessedStore returns nil when there is no pool, which turns
// webhook deduplication off.
func BuildProcessedStore(pool *pgxpool.Pool) *events.ProcessedStore {
	if pool == nil {
		return nil
	}
	return events.NewProcessedStore(pool)
}
