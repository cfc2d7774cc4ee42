package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/polkiloo/vendbot/internal/config"
	"github.com/polkiloo/vendbot/internal/domain/repository"
	"github.com/polkiloo/vendbot/internal/storage/memory"
)

// Module provides conversation and dedupe stores. Without a Redis address
// both fall back to process memory.
var Module = fx.Options(
	fx.Provide(newClient),
	fx.Provide(newConversationRepository),
	fx.Provide(newUpdateDeduplicator),
)

type clientParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *slog.Logger
}

// newClient returns nil when Redis is not configured.
func newClient(p clientParams) (*redis.Client, error) {
	if p.Config.RedisAddr == "" {
		p.Logger.Info("redis not configured, using in-memory session store")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: p.Config.RedisAddr})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newConversationRepository(client *redis.Client, cfg *config.Config) repository.ConversationRepository {
	if client == nil {
		return memory.NewConversationStore()
	}
	return NewConversationStore(client, cfg.ConversationTTL)
}

func newUpdateDeduplicator(client *redis.Client) repository.UpdateDeduplicator {
	if client == nil {
		return memory.NewDeduplicator(updateKeyTTL)
	}
	return NewDeduplicator(client)
}
