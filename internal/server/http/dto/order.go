package dto

import "time"

// OrderResponse describes one purchase.
type OrderResponse struct {
	ID           int64      `json:"id"`
	CustomerID   int64      `json:"customer_id"`
	CustomerName string     `json:"customer_name"`
	Amount       int64      `json:"amount"`
	Status       string     `json:"status"`
	ItemID       *int64     `json:"item_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
}

// RejectRequest optionally carries the reason shown to the customer.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// AssignRequest pins an item to an order.
type AssignRequest struct {
	ItemID int64 `json:"item_id" binding:"required"`
}

// FulfillmentResponse reports an approval. The credential itself is never returned.
type FulfillmentResponse struct {
	Order         OrderResponse `json:"order"`
	ItemID        int64         `json:"item_id"`
	Delivered     bool          `json:"delivered"`
	DeliveryError string        `json:"delivery_error,omitempty"`
}
