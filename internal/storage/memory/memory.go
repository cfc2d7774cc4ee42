// Package memory keeps conversation state and update ids in process memory.
// It is used when no Redis address is configured.
package memory

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
)

// ConversationStore holds one conversation per chat.
type ConversationStore struct {
	mu    sync.Mutex
	items map[int64]model.Conversation
}

// NewConversationStore returns an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{items: make(map[int64]model.Conversation)}
}

func (s *ConversationStore) Save(_ context.Context, c model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[c.ChatID] = cloneConversation(c)
	return nil
}

func (s *ConversationStore) Load(_ context.Context, chatID int64) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[chatID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	out := cloneConversation(c)
	return &out, nil
}

func (s *ConversationStore) Delete(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, chatID)
	return nil
}

func cloneConversation(c model.Conversation) model.Conversation {
	if c.Data == nil {
		return c
	}
	data := make(map[string]string, len(c.Data))
	for k, v := range c.Data {
		data[k] = v
	}
	c.Data = data
	return c
}

// Deduplicator remembers update ids for ttl.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[int64]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewDeduplicator returns a Deduplicator; ttl <= 0 means 24h.
func NewDeduplicator(ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduplicator{seen: make(map[int64]time.Time), ttl: ttl, now: time.Now}
}

// FirstSeen records id and reports whether it was new.
func (d *Deduplicator) FirstSeen(_ context.Context, updateID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for id, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, id)
		}
	}
	if _, ok := d.seen[updateID]; ok {
		return false, nil
	}
	d.seen[updateID] = now.Add(d.ttl)
	return true, nil
}

func (d *Deduplicator) Forget(_ context.Context, updateID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, updateID)
	return nil
}
