package redis

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"github.com/polkiloo/vendbot/internal/config"
	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/storage/memory"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestConversationStoreRoundTrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewConversationStore(client, time.Minute)
	const chatID = int64(-424242)
	client.Del(ctx, conversationKey(chatID))

	_, err := store.Load(ctx, chatID)
	require.ErrorIs(t, err, domainErrors.ErrNotFound)

	in := model.Conversation{
		ChatID:    chatID,
		Step:      "delete_item_confirm",
		Data:      map[string]string{"item_id": "9"},
		Attempts:  1,
		ExpiresAt: time.Now().Add(time.Minute).Truncate(time.Second),
	}
	require.NoError(t, store.Save(ctx, in))

	got, err := store.Load(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, in.Step, got.Step)
	assert.Equal(t, in.Data, got.Data)
	assert.Equal(t, 1, got.Attempts)

	ttl := client.TTL(ctx, conversationKey(chatID)).Val()
	assert.True(t, ttl > 0 && ttl <= time.Minute, "ttl follows expiry, got %s", ttl)

	require.NoError(t, store.Delete(ctx, chatID))
	_, err = store.Load(ctx, chatID)
	require.ErrorIs(t, err, domainErrors.ErrNotFound)
}

func TestConversationStoreSkipsExpired(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	store := NewConversationStore(client, time.Minute)
	const chatID = int64(-434343)

	require.NoError(t, store.Save(ctx, model.Conversation{ChatID: chatID, Step: "set_price", ExpiresAt: time.Now().Add(-time.Second)}))
	_, err := store.Load(ctx, chatID)
	require.ErrorIs(t, err, domainErrors.ErrNotFound)
}

func TestDeduplicatorFirstSeen(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	d := NewDeduplicator(client)
	const updateID = int64(987654321)
	client.Del(ctx, "update:987654321")

	first, err := d.FirstSeen(ctx, updateID)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := d.FirstSeen(ctx, updateID)
	require.NoError(t, err)
	assert.False(t, second)

	ttl := client.TTL(ctx, "update:987654321").Val()
	assert.True(t, ttl > 23*time.Hour)

	require.NoError(t, d.Forget(ctx, updateID))
	again, err := d.FirstSeen(ctx, updateID)
	require.NoError(t, err)
	assert.True(t, again, "forgotten ids are accepted again")
}

func TestModuleFallsBackToMemory(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := &config.Config{ConversationTTL: time.Minute}

	client, err := newClient(clientParams{Lifecycle: lc, Config: cfg, Logger: logger})
	require.NoError(t, err)
	assert.Nil(t, client)

	_, ok := newConversationRepository(client, cfg).(*memory.ConversationStore)
	assert.True(t, ok)
	_, ok = newUpdateDeduplicator(client).(*memory.Deduplicator)
	assert.True(t, ok)
}

func TestModuleUsesRedisWhenConfigured(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	cfg := &config.Config{RedisAddr: "localhost:6379", ConversationTTL: time.Minute}

	client, err := newClient(clientParams{Lifecycle: lc, Config: cfg, Logger: logger})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	_, ok := newConversationRepository(client, cfg).(*ConversationStore)
	assert.True(t, ok)
	_, ok = newUpdateDeduplicator(client).(*Deduplicator)
	assert.True(t, ok)
}
