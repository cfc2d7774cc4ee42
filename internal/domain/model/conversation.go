package model

import "time"

// Conversation is the pending multi-turn input exchange for one chat.
type Conversation struct {
	ChatID    int64             `json:"chat_id"`
	Step      string            `json:"step"`
	Data      map[string]string `json:"data,omitempty"`
	Attempts  int               `json:"attempts"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Expired reports whether the state is stale at the given instant.
func (c Conversation) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
