// Package redis keeps conversation state and processed update ids in Redis
// so they survive restarts and are shared between replicas.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
)

const (
	conversationKeyPrefix = "conv:"
	updateKeyPrefix       = "update:"
	updateKeyTTL          = 24 * time.Hour
)

func conversationKey(chatID int64) string {
	return conversationKeyPrefix + strconv.FormatInt(chatID, 10)
}

// ConversationStore stores each conversation as JSON with a TTL matching its expiry.
type ConversationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewConversationStore builds a store; ttl is used when a conversation has no expiry.
func NewConversationStore(client *redis.Client, ttl time.Duration) *ConversationStore {
	return &ConversationStore{client: client, ttl: ttl}
}

func (s *ConversationStore) Save(ctx context.Context, c model.Conversation) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	ttl := s.ttl
	if !c.ExpiresAt.IsZero() {
		ttl = time.Until(c.ExpiresAt)
		if ttl <= 0 {
			return s.Delete(ctx, c.ChatID)
		}
	}
	if err := s.client.Set(ctx, conversationKey(c.ChatID), payload, ttl).Err(); err != nil {
		return &domainErrors.StorageError{Op: "save conversation", Err: err}
	}
	return nil
}

func (s *ConversationStore) Load(ctx context.Context, chatID int64) (*model.Conversation, error) {
	payload, err := s.client.Get(ctx, conversationKey(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, &domainErrors.StorageError{Op: "load conversation", Err: err}
	}
	var c model.Conversation
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, &domainErrors.StorageError{Op: "decode conversation", Err: err}
	}
	return &c, nil
}

func (s *ConversationStore) Delete(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, conversationKey(chatID)).Err(); err != nil {
		return &domainErrors.StorageError{Op: "delete conversation", Err: err}
	}
	return nil
}

// Deduplicator marks update ids with SETNX.
type Deduplicator struct {
	client *redis.Client
}

// NewDeduplicator builds a Deduplicator.
func NewDeduplicator(client *redis.Client) *Deduplicator {
	return &Deduplicator{client: client}
}

// FirstSeen reports whether updateID was not processed within the last 24h.
func (d *Deduplicator) FirstSeen(ctx context.Context, updateID int64) (bool, error) {
	ok, err := d.client.SetNX(ctx, updateKeyPrefix+strconv.FormatInt(updateID, 10), 1, updateKeyTTL).Result()
	if err != nil {
		return false, &domainErrors.StorageError{Op: "dedupe update", Err: err}
	}
	return ok, nil
}

func (d *Deduplicator) Forget(ctx context.Context, updateID int64) error {
	if err := d.client.Del(ctx, updateKeyPrefix+strconv.FormatInt(updateID, 10)).Err(); err != nil {
		return &domainErrors.StorageError{Op: "forget update", Err: err}
	}
	return nil
}
