package usecase

import (
	"context"

	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/domain/repository"
)

// InventoryUseCase manages stock outside of allocation.
type InventoryUseCase struct {
	items repository.InventoryRepository
}

// NewInventoryUseCase constructs InventoryUseCase.
func NewInventoryUseCase(items repository.InventoryRepository) *InventoryUseCase {
	return &InventoryUseCase{items: items}
}

// Add parses a "login|secret[|notes]" line and stores the item.
func (u *InventoryUseCase) Add(ctx context.Context, raw string) (*model.Item, error) {
	in, err := ParseItemInput(raw)
	if err != nil {
		return nil, err
	}
	return u.items.Add(ctx, in.Login, in.Secret, in.Notes)
}

// Get returns a single item.
func (u *InventoryUseCase) Get(ctx context.Context, id int64) (*model.Item, error) {
	return u.items.Get(ctx, id)
}

// Delete removes an item. Without force, items behind completed orders are kept.
func (u *InventoryUseCase) Delete(ctx context.Context, id int64, force bool) error {
	return u.items.Delete(ctx, id, force)
}

// Available lists unsold items oldest first.
func (u *InventoryUseCase) Available(ctx context.Context, limit int) ([]model.Item, error) {
	return u.items.ListAvailable(ctx, limit)
}

// Stock returns total and available counts.
func (u *InventoryUseCase) Stock(ctx context.Context) (model.StockCount, error) {
	return u.items.Count(ctx)
}
