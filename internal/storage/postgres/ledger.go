package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
)

// ledgerTx implements repository.LedgerTx on an open transaction.
type ledgerTx struct {
	tx pgx.Tx
}

func (l *ledgerTx) LockOrder(ctx context.Context, id int64) (*model.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE id=$1 FOR UPDATE`
	o, err := scanOrder(l.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, wrapErr("lock order", err)
	}
	return o, nil
}

// OldestUnsoldItem skips rows locked by concurrent claims and items pinned
// to another pending order.
func (l *ledgerTx) OldestUnsoldItem(ctx context.Context) (*model.Item, error) {
	const query = `SELECT ` + itemColumns + ` FROM items WHERE sold=false
                   AND NOT EXISTS (SELECT 1 FROM orders o WHERE o.item_id=items.id AND o.status='pending')
                   ORDER BY added_at, id
                   LIMIT 1
                   FOR UPDATE SKIP LOCKED`
	it, err := scanItem(l.tx.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrStockExhausted
		}
		return nil, wrapErr("claim item", err)
	}
	return it, nil
}

func (l *ledgerTx) Item(ctx context.Context, id int64) (*model.Item, error) {
	return getItem(ctx, l.tx, id, true)
}

func (l *ledgerTx) ItemPinned(ctx context.Context, itemID, orderID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM orders WHERE item_id=$1 AND status='pending' AND id<>$2)`
	var pinned bool
	if err := l.tx.QueryRow(ctx, query, itemID, orderID).Scan(&pinned); err != nil {
		return false, wrapErr("check item pin", err)
	}
	return pinned, nil
}

func (l *ledgerTx) AssignItem(ctx context.Context, orderID, itemID int64, current *int64) (bool, error) {
	const query = `UPDATE orders SET item_id=$1 WHERE id=$2 AND status='pending' AND item_id IS NOT DISTINCT FROM $3`
	tag, err := l.tx.Exec(ctx, query, itemID, orderID, current)
	if err != nil {
		return false, wrapErr("assign item", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (l *ledgerTx) MarkItemSold(ctx context.Context, itemID, buyerID int64, buyerName string, at time.Time) (bool, error) {
	const query = `UPDATE items SET sold=true, buyer_id=$1, buyer_name=$2, sold_at=$3 WHERE id=$4 AND sold=false`
	tag, err := l.tx.Exec(ctx, query, buyerID, buyerName, at, itemID)
	if err != nil {
		return false, wrapErr("mark item sold", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (l *ledgerTx) FinalizeOrder(ctx context.Context, orderID int64, status model.OrderStatus, at time.Time, notes *string) (bool, error) {
	const query = `UPDATE orders SET status=$1, completed_at=$2, operator_notes=COALESCE($3, operator_notes)
                   WHERE id=$4 AND status='pending'`
	tag, err := l.tx.Exec(ctx, query, string(status), at, notes, orderID)
	if err != nil {
		return false, wrapErr("finalize order", err)
	}
	return tag.RowsAffected() == 1, nil
}
