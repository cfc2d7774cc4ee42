package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/domain/repository"
)

func (r *orderRepository) Create(ctx context.Context, in repository.NewOrder) (*model.Order, error) {
	order := model.Order{
		CustomerID:   in.CustomerID,
		CustomerName: in.CustomerName,
		Amount:       in.Amount,
		PaymentProof: in.PaymentProof,
		Status:       model.OrderStatusPending,
	}
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		// Serialises submissions of one customer so the limit below holds.
		const lock = `SELECT id FROM customers WHERE id=$1 FOR UPDATE`
		var customerID int64
		if err := tx.QueryRow(ctx, lock, in.CustomerID).Scan(&customerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrNotFound
			}
			return wrapErr("create order", err)
		}

		const insert = `INSERT INTO orders (customer_id, customer_name, amount, payment_proof, status)
                        SELECT $1, $2, $3, $4, 'pending'
                        WHERE $5::int <= 0
                           OR (SELECT COUNT(*) FROM orders WHERE customer_id=$1 AND status='pending') < $5::int
                        RETURNING id, created_at`
		err := tx.QueryRow(ctx, insert, in.CustomerID, in.CustomerName, in.Amount, in.PaymentProof, in.MaxPending).
			Scan(&order.ID, &order.CreatedAt)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domainErrors.ErrPurchaseLimit
		case isPgCode(err, pgForeignKeyViolation):
			return domainErrors.ErrNotFound
		case err != nil:
			return wrapErr("create order", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (*model.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	o, err := scanOrder(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, wrapErr("get order", err)
	}
	return o, nil
}

func (r *orderRepository) ListPending(ctx context.Context, limit int) ([]model.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE status='pending' ORDER BY created_at, id LIMIT $1`
	rows, err := r.storage.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, wrapErr("list pending orders", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, wrapErr("list pending orders", err)
	}
	return orders, nil
}

func (r *orderRepository) CountPendingByCustomer(ctx context.Context, customerID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM orders WHERE customer_id=$1 AND status='pending'`
	var n int
	if err := r.storage.pool.QueryRow(ctx, query, customerID).Scan(&n); err != nil {
		return 0, wrapErr("count pending orders", err)
	}
	return n, nil
}

func (r *orderRepository) ListFinalizedSince(ctx context.Context, since time.Time) ([]model.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders
                   WHERE status IN ('completed', 'cancelled') AND created_at >= $1
                   ORDER BY created_at DESC`
	rows, err := r.storage.pool.Query(ctx, query, since)
	if err != nil {
		return nil, wrapErr("list finalized orders", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, wrapErr("list finalized orders", err)
	}
	return orders, nil
}

func (r *orderRepository) Stats(ctx context.Context, dayStart time.Time) (model.SalesStats, error) {
	const query = `SELECT
            (SELECT COUNT(*) FROM customers),
            (SELECT COUNT(*) FROM items),
            (SELECT COUNT(*) FROM items WHERE sold=false),
            COUNT(*) FILTER (WHERE status='pending'),
            COUNT(*) FILTER (WHERE status='completed'),
            COALESCE(SUM(amount) FILTER (WHERE status='completed'), 0),
            COUNT(*) FILTER (WHERE status='completed' AND completed_at >= $1),
            COALESCE(SUM(amount) FILTER (WHERE status='completed' AND completed_at >= $1), 0)
        FROM orders`
	var s model.SalesStats
	err := r.storage.pool.QueryRow(ctx, query, dayStart).Scan(
		&s.Customers, &s.ItemsTotal, &s.ItemsAvailable, &s.PendingOrders,
		&s.CompletedTotal, &s.RevenueTotal, &s.CompletedToday, &s.RevenueToday,
	)
	if err != nil {
		return model.SalesStats{}, wrapErr("sales stats", err)
	}
	return s, nil
}
