package model

import "time"

// OrderStatus describes the purchase lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from the status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// Order is one purchase attempt from proof submission to a terminal outcome.
type Order struct {
	ID           int64
	ItemID       *int64
	CustomerID   int64
	CustomerName string
	Amount       int64
	PaymentProof string
	Status       OrderStatus
	CreatedAt    time.Time
	CompletedAt  *time.Time
	Notes        *string
}

// Allocation is the result of a successful approval.
type Allocation struct {
	Order Order
	Item  Item
}

// Fulfillment is the outcome of an approval. A failed delivery never undoes
// the allocation; the operator resends the credential by hand.
type Fulfillment struct {
	Allocation  *Allocation
	Delivered   bool
	DeliveryErr error
}

// SalesStats aggregates completed sales.
type SalesStats struct {
	Customers      int
	ItemsTotal     int
	ItemsAvailable int
	PendingOrders  int
	CompletedTotal int
	RevenueTotal   int64
	CompletedToday int
	RevenueToday   int64
}
