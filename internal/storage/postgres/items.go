package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
)

func (r *itemRepository) Add(ctx context.Context, login, secret, notes string) (*model.Item, error) {
	const query = `INSERT INTO items (login, secret, notes) VALUES ($1, $2, $3) RETURNING id, added_at`
	it := model.Item{Login: login, Secret: secret, Notes: notes}
	err := r.storage.pool.QueryRow(ctx, query, login, secret, notes).Scan(&it.ID, &it.AddedAt)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return nil, domainErrors.ErrAlreadyExists
		}
		return nil, wrapErr("add item", err)
	}
	return &it, nil
}

func (r *itemRepository) Get(ctx context.Context, id int64) (*model.Item, error) {
	return getItem(ctx, r.storage.pool, id, false)
}

func (r *itemRepository) ListAvailable(ctx context.Context, limit int) ([]model.Item, error) {
	const query = `SELECT ` + itemColumns + ` FROM items WHERE sold=false ORDER BY added_at, id LIMIT $1`
	rows, err := r.storage.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, wrapErr("list items", err)
	}
	defer rows.Close()

	var result []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, wrapErr("list items", err)
		}
		result = append(result, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list items", err)
	}
	return result, nil
}

func (r *itemRepository) Count(ctx context.Context) (model.StockCount, error) {
	const query = `SELECT COUNT(*), COUNT(*) FILTER (WHERE sold=false) FROM items`
	var c model.StockCount
	if err := r.storage.pool.QueryRow(ctx, query).Scan(&c.Total, &c.Available); err != nil {
		return model.StockCount{}, wrapErr("count items", err)
	}
	return c, nil
}

func (r *itemRepository) Release(ctx context.Context, id int64) error {
	const query = `UPDATE items SET sold=false, buyer_id=NULL, buyer_name=NULL, sold_at=NULL WHERE id=$1`
	tag, err := r.storage.pool.Exec(ctx, query, id)
	if err != nil {
		return wrapErr("release item", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *itemRepository) Delete(ctx context.Context, id int64, force bool) error {
	return r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		// Waits for an in-flight approval holding the row, so the check below
		// sees its committed order.
		const lock = `SELECT id FROM items WHERE id=$1 FOR UPDATE`
		var locked int64
		if err := tx.QueryRow(ctx, lock, id).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrNotFound
			}
			return wrapErr("delete item", err)
		}

		const referenced = `SELECT EXISTS (SELECT 1 FROM orders WHERE item_id=$1 AND status='completed')`
		var inUse bool
		if err := tx.QueryRow(ctx, referenced, id).Scan(&inUse); err != nil {
			return wrapErr("delete item", err)
		}
		if inUse && !force {
			return domainErrors.ErrForeignKeyConflict
		}

		tag, err := tx.Exec(ctx, `DELETE FROM items WHERE id=$1`, id)
		if err != nil {
			if isPgCode(err, pgForeignKeyViolation) {
				return domainErrors.ErrForeignKeyConflict
			}
			return wrapErr("delete item", err)
		}
		if tag.RowsAffected() == 0 {
			return domainErrors.ErrNotFound
		}
		return nil
	})
}

func getItem(ctx context.Context, q querier, id int64, lock bool) (*model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	it, err := scanItem(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, wrapErr("get item", err)
	}
	return it, nil
}
