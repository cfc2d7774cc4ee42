package repository

import (
	"context"

	"github.com/polkiloo/vendbot/internal/domain/model"
)

// InventoryRepository describes persistence operations for sellable items.
type InventoryRepository interface {
	Add(ctx context.Context, login, secret, notes string) (*model.Item, error)
	Get(ctx context.Context, id int64) (*model.Item, error)
	ListAvailable(ctx context.Context, limit int) ([]model.Item, error)
	Count(ctx context.Context) (model.StockCount, error)
	// Release clears the sold flag. Used only to compensate a failed allocation.
	Release(ctx context.Context, id int64) error
	// Delete fails with ErrForeignKeyConflict when a completed order references
	// the item, unless force is set.
	Delete(ctx context.Context, id int64, force bool) error
}
