package repository

import (
	"context"
	"time"

	"github.com/polkiloo/vendbot/internal/domain/model"
)

// Ledger runs allocation steps inside one transaction boundary. Returning an
// error from fn rolls back every write made through the LedgerTx.
type Ledger interface {
	WithinLedger(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx exposes the guarded reads and writes an allocation is built from.
// The bool results report whether a conditional update matched a row.
type LedgerTx interface {
	// LockOrder loads the order and holds it until the transaction ends.
	LockOrder(ctx context.Context, id int64) (*model.Order, error)
	// OldestUnsoldItem skips items pinned to a pending order and returns
	// ErrStockExhausted when nothing is left.
	OldestUnsoldItem(ctx context.Context) (*model.Item, error)
	// Item loads the item and holds it until the transaction ends.
	Item(ctx context.Context, id int64) (*model.Item, error)
	// ItemPinned reports whether a pending order other than orderID holds itemID.
	ItemPinned(ctx context.Context, itemID, orderID int64) (bool, error)
	// AssignItem sets the order's item only while its current item equals current.
	AssignItem(ctx context.Context, orderID, itemID int64, current *int64) (bool, error)
	MarkItemSold(ctx context.Context, itemID, buyerID int64, buyerName string, at time.Time) (bool, error)
	FinalizeOrder(ctx context.Context, orderID int64, status model.OrderStatus, at time.Time, notes *string) (bool, error)
}
