package dto

import "time"

// ItemResponse describes an inventory item without its secret.
type ItemResponse struct {
	ID      int64     `json:"id"`
	Login   string    `json:"login"`
	Notes   string    `json:"notes,omitempty"`
	Sold    bool      `json:"sold"`
	AddedAt time.Time `json:"added_at"`
}

// AddItemRequest describes a new credential.
type AddItemRequest struct {
	Login  string `json:"login" binding:"required"`
	Secret string `json:"secret" binding:"required"`
	Notes  string `json:"notes"`
}
