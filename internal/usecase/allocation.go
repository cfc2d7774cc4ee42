package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/domain/repository"
)

// DefaultRejectReason is recorded when the operator gives none.
const DefaultRejectReason = "Payment could not be verified."

const missingItemNote = "assigned item no longer exists"

// AllocationUseCase moves pending orders to a terminal status. Every call
// runs in one ledger transaction with the order row locked.
type AllocationUseCase struct {
	ledger repository.Ledger
	logger *slog.Logger
	now    func() time.Time
}

// NewAllocationUseCase constructs AllocationUseCase.
func NewAllocationUseCase(ledger repository.Ledger, logger *slog.Logger) *AllocationUseCase {
	return &AllocationUseCase{ledger: ledger, logger: logger, now: time.Now}
}

func lockPending(ctx context.Context, tx repository.LedgerTx, orderID int64) (*model.Order, error) {
	order, err := tx.LockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPending {
		return nil, &domainErrors.AlreadyFinalizedError{OrderID: order.ID, Status: string(order.Status)}
	}
	return order, nil
}

// Approve claims the oldest unsold item for the order, or its pre-assigned
// item, and completes the order. On ErrStockExhausted the order stays pending.
// A pre-assigned item that no longer exists fails the order and returns ErrNotFound.
func (u *AllocationUseCase) Approve(ctx context.Context, orderID int64) (*model.Allocation, error) {
	var (
		result      *model.Allocation
		missingItem bool
	)
	err := u.ledger.WithinLedger(ctx, func(tx repository.LedgerTx) error {
		order, err := lockPending(ctx, tx, orderID)
		if err != nil {
			return err
		}
		at := u.now()

		var item *model.Item
		if order.ItemID == nil {
			item, err = tx.OldestUnsoldItem(ctx)
			if err != nil {
				return err
			}
			ok, err := tx.AssignItem(ctx, order.ID, item.ID, nil)
			if err != nil {
				return err
			}
			if !ok {
				return domainErrors.ErrAllocationConflict
			}
		} else {
			item, err = tx.Item(ctx, *order.ItemID)
			if errors.Is(err, domainErrors.ErrNotFound) {
				note := missingItemNote
				if _, err := tx.FinalizeOrder(ctx, order.ID, model.OrderStatusFailed, at, &note); err != nil {
					return err
				}
				missingItem = true
				return nil
			}
			if err != nil {
				return err
			}
			if item.Sold {
				return domainErrors.ErrAllocationConflict
			}
		}

		sold, err := tx.MarkItemSold(ctx, item.ID, order.CustomerID, order.CustomerName, at)
		if err != nil {
			return err
		}
		if !sold {
			return domainErrors.ErrAllocationConflict
		}

		done, err := tx.FinalizeOrder(ctx, order.ID, model.OrderStatusCompleted, at, nil)
		if err != nil {
			return err
		}
		if !done {
			return domainErrors.ErrAllocationConflict
		}

		itemID := item.ID
		order.ItemID = &itemID
		order.Status = model.OrderStatusCompleted
		order.CompletedAt = &at
		item.Sold = true
		item.BuyerID = &order.CustomerID
		item.BuyerName = &order.CustomerName
		item.SoldAt = &at
		result = &model.Allocation{Order: *order, Item: *item}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if missingItem {
		u.logger.Warn("order failed: assigned item missing", slog.Int64("order_id", orderID))
		return nil, fmt.Errorf("order %d: %s: %w", orderID, missingItemNote, domainErrors.ErrNotFound)
	}
	u.logger.Info("order approved",
		slog.Int64("order_id", orderID),
		slog.Int64("item_id", result.Item.ID),
		slog.Int64("customer_id", result.Order.CustomerID),
	)
	return result, nil
}

// Reject cancels a pending order and records the reason.
func (u *AllocationUseCase) Reject(ctx context.Context, orderID int64, reason string) (*model.Order, error) {
	if reason == "" {
		reason = DefaultRejectReason
	}
	var result *model.Order
	err := u.ledger.WithinLedger(ctx, func(tx repository.LedgerTx) error {
		order, err := lockPending(ctx, tx, orderID)
		if err != nil {
			return err
		}
		at := u.now()
		done, err := tx.FinalizeOrder(ctx, order.ID, model.OrderStatusCancelled, at, &reason)
		if err != nil {
			return err
		}
		if !done {
			return domainErrors.ErrAllocationConflict
		}
		order.Status = model.OrderStatusCancelled
		order.CompletedAt = &at
		order.Notes = &reason
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.logger.Info("order rejected", slog.Int64("order_id", orderID))
	return result, nil
}

// Assign pins a specific unsold item to a pending order ahead of approval.
// An order whose pinned item was sold or deleted may be pinned again; an item
// already held by another pending order is refused with ErrAllocationConflict.
func (u *AllocationUseCase) Assign(ctx context.Context, orderID, itemID int64) (*model.Order, error) {
	var result *model.Order
	err := u.ledger.WithinLedger(ctx, func(tx repository.LedgerTx) error {
		order, err := lockPending(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.ItemID != nil {
			current, err := tx.Item(ctx, *order.ItemID)
			switch {
			case errors.Is(err, domainErrors.ErrNotFound):
			case err != nil:
				return err
			case !current.Sold:
				return domainErrors.Invalid("order", "an item is already assigned")
			}
		}

		item, err := tx.Item(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Sold {
			return domainErrors.ErrAllocationConflict
		}
		pinned, err := tx.ItemPinned(ctx, item.ID, order.ID)
		if err != nil {
			return err
		}
		if pinned {
			return domainErrors.ErrAllocationConflict
		}

		ok, err := tx.AssignItem(ctx, order.ID, item.ID, order.ItemID)
		if err != nil {
			return err
		}
		if !ok {
			return domainErrors.ErrAllocationConflict
		}
		order.ItemID = &item.ID
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.logger.Info("item assigned",
		slog.Int64("order_id", orderID),
		slog.Int64("item_id", itemID),
	)
	return result, nil
}
