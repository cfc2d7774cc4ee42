package repository

import (
	"context"
	"time"

	"github.com/polkiloo/vendbot/internal/domain/model"
)

// NewOrder carries the fields recorded when a customer submits proof.
// When MaxPending is positive, Create refuses with ErrPurchaseLimit once the
// customer already has that many pending orders.
type NewOrder struct {
	CustomerID   int64
	CustomerName string
	Amount       int64
	PaymentProof string
	MaxPending   int
}

// OrderRepository describes persistence operations with orders.
type OrderRepository interface {
	Create(ctx context.Context, order NewOrder) (*model.Order, error)
	Get(ctx context.Context, id int64) (*model.Order, error)
	ListPending(ctx context.Context, limit int) ([]model.Order, error)
	CountPendingByCustomer(ctx context.Context, customerID int64) (int, error)
	ListFinalizedSince(ctx context.Context, since time.Time) ([]model.Order, error)
	Stats(ctx context.Context, dayStart time.Time) (model.SalesStats, error)
}
