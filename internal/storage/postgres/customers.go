package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
)

// --- CustomerRepository implementation ---

func (r *customerRepository) Register(ctx context.Context, id int64, name string) (*model.Customer, error) {
	const query = `INSERT INTO customers (id, display_name) VALUES ($1, $2)
                   ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
                   RETURNING id, display_name, joined_at, blocked`
	var c model.Customer
	if err := r.storage.pool.QueryRow(ctx, query, id, name).Scan(&c.ID, &c.Name, &c.JoinedAt, &c.Blocked); err != nil {
		return nil, wrapErr("register customer", err)
	}
	return &c, nil
}

func (r *customerRepository) Get(ctx context.Context, id int64) (*model.Customer, error) {
	const query = `SELECT id, display_name, joined_at, blocked FROM customers WHERE id=$1`
	var c model.Customer
	if err := r.storage.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.JoinedAt, &c.Blocked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, wrapErr("get customer", err)
	}
	return &c, nil
}

func (r *customerRepository) ListActive(ctx context.Context) ([]model.Customer, error) {
	const query = `SELECT id, display_name, joined_at, blocked FROM customers WHERE blocked=false ORDER BY id`
	rows, err := r.storage.pool.Query(ctx, query)
	if err != nil {
		return nil, wrapErr("list customers", err)
	}
	defer rows.Close()

	var result []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.JoinedAt, &c.Blocked); err != nil {
			return nil, wrapErr("list customers", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list customers", err)
	}
	return result, nil
}

func (r *customerRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.storage.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE blocked=false`).Scan(&n); err != nil {
		return 0, wrapErr("count customers", err)
	}
	return n, nil
}

// MarkBlocked flips the blocked flag for every id in one statement.
func (r *customerRepository) MarkBlocked(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE customers SET blocked=true WHERE id = ANY($1) AND blocked=false`
	tag, err := r.storage.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, wrapErr("mark customers blocked", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- PaymentChannelRepository implementation ---

const paymentChannelColumns = `id, method, account_number, holder_name, active`

func scanPaymentChannel(row pgx.Row) (*model.PaymentChannel, error) {
	var pc model.PaymentChannel
	if err := row.Scan(&pc.ID, &pc.Method, &pc.AccountNumber, &pc.Holder, &pc.Active); err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *paymentChannelRepository) Upsert(ctx context.Context, method, number, holder string) (*model.PaymentChannel, error) {
	const query = `INSERT INTO payment_channels (method, account_number, holder_name, active)
                   VALUES ($1, $2, $3, true)
                   ON CONFLICT (method) DO UPDATE
                   SET account_number = EXCLUDED.account_number,
                       holder_name = EXCLUDED.holder_name,
                       active = true
                   RETURNING ` + paymentChannelColumns
	pc, err := scanPaymentChannel(r.storage.pool.QueryRow(ctx, query, method, number, holder))
	if err != nil {
		return nil, wrapErr("upsert payment channel", err)
	}
	return pc, nil
}

func (r *paymentChannelRepository) List(ctx context.Context, activeOnly bool) ([]model.PaymentChannel, error) {
	query := `SELECT ` + paymentChannelColumns + ` FROM payment_channels`
	if activeOnly {
		query += ` WHERE active=true`
	}
	query += ` ORDER BY method`

	rows, err := r.storage.pool.Query(ctx, query)
	if err != nil {
		return nil, wrapErr("list payment channels", err)
	}
	defer rows.Close()

	var result []model.PaymentChannel
	for rows.Next() {
		pc, err := scanPaymentChannel(rows)
		if err != nil {
			return nil, wrapErr("list payment channels", err)
		}
		result = append(result, *pc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list payment channels", err)
	}
	return result, nil
}

func (r *paymentChannelRepository) Toggle(ctx context.Context, id int64) (*model.PaymentChannel, error) {
	const query = `UPDATE payment_channels SET active = NOT active WHERE id=$1 RETURNING ` + paymentChannelColumns
	pc, err := scanPaymentChannel(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, wrapErr("toggle payment channel", err)
	}
	return pc, nil
}

func (r *paymentChannelRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.storage.pool.Exec(ctx, `DELETE FROM payment_channels WHERE id=$1`, id)
	if err != nil {
		return wrapErr("delete payment channel", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

// --- SettingsRepository implementation ---

func (r *settingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	if err := r.storage.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domainErrors.ErrNotFound
		}
		return "", wrapErr("get setting", err)
	}
	return value, nil
}

func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	const query = `INSERT INTO settings (key, value) VALUES ($1, $2)
                   ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := r.storage.pool.Exec(ctx, query, key, value); err != nil {
		return wrapErr("set setting", err)
	}
	return nil
}
