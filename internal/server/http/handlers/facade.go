package handlers

import (
	"context"

	"github.com/polkiloo/vendbot/internal/domain/model"
)

// AuthFacade describes operator authentication required by handlers.
type AuthFacade interface {
	Login(ctx context.Context, operatorID int64, password string) (string, error)
	ParseToken(token string) (int64, error)
}

// OrderFacade exposes order review over HTTP.
type OrderFacade interface {
	Pending(ctx context.Context, limit int) ([]model.Order, error)
	Order(ctx context.Context, id int64) (*model.Order, error)
	Approve(ctx context.Context, id int64) (*model.Fulfillment, error)
	Reject(ctx context.Context, id int64, reason string) (*model.Order, error)
	Assign(ctx context.Context, orderID, itemID int64) (*model.Order, error)
}

// InventoryFacade exposes stock management.
type InventoryFacade interface {
	AvailableItems(ctx context.Context, limit int) ([]model.Item, error)
	AddItem(ctx context.Context, raw string) (*model.Item, error)
	DeleteItem(ctx context.Context, id int64, force bool) error
	Stats(ctx context.Context) (model.SalesStats, error)
}

// OperatorFacade aggregates the full set of operations used across handlers.
type OperatorFacade interface {
	AuthFacade
	OrderFacade
	InventoryFacade
}

// UpdateQueue accepts chat updates delivered by webhook.
type UpdateQueue interface {
	Enqueue(ctx context.Context, u model.Update) error
}
