package repository

import (
	"context"

	"github.com/polkiloo/vendbot/internal/domain/model"
)

// ConversationRepository keeps at most one conversation per chat.
type ConversationRepository interface {
	Save(ctx context.Context, c model.Conversation) error
	Load(ctx context.Context, chatID int64) (*model.Conversation, error)
	Delete(ctx context.Context, chatID int64) error
}

// UpdateDeduplicator remembers inbound update ids. Forget releases an id
// whose update was not accepted, so a redelivery is processed.
type UpdateDeduplicator interface {
	FirstSeen(ctx context.Context, updateID int64) (bool, error)
	Forget(ctx context.Context, updateID int64) error
}
