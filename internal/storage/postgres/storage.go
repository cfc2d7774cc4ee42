package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/domain/repository"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type pgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   pgxPool
	logger *slog.Logger
}

type itemRepository struct {
	storage *Storage
}

type orderRepository struct {
	storage *Storage
}

type customerRepository struct {
	storage *Storage
}

type paymentChannelRepository struct {
	storage *Storage
}

type settingsRepository struct {
	storage *Storage
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Factory methods for domain repositories.
func (s *Storage) Items() repository.InventoryRepository {
	return &itemRepository{storage: s}
}

func (s *Storage) Orders() repository.OrderRepository {
	return &orderRepository{storage: s}
}

func (s *Storage) Customers() repository.CustomerRepository {
	return &customerRepository{storage: s}
}

func (s *Storage) PaymentChannels() repository.PaymentChannelRepository {
	return &paymentChannelRepository{storage: s}
}

func (s *Storage) Settings() repository.SettingsRepository {
	return &settingsRepository{storage: s}
}

func (s *Storage) Ledger() repository.Ledger {
	return s
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS items (
            id BIGSERIAL PRIMARY KEY,
            login TEXT UNIQUE NOT NULL,
            secret TEXT NOT NULL,
            notes TEXT NOT NULL DEFAULT '',
            sold BOOLEAN NOT NULL DEFAULT FALSE,
            buyer_id BIGINT,
            buyer_name TEXT,
            sold_at TIMESTAMPTZ,
            added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS customers (
            id BIGINT PRIMARY KEY,
            display_name TEXT NOT NULL DEFAULT '',
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            blocked BOOLEAN NOT NULL DEFAULT FALSE
        )`,
		`CREATE TABLE IF NOT EXISTS orders (
            id BIGSERIAL PRIMARY KEY,
            item_id BIGINT REFERENCES items(id) ON DELETE SET NULL,
            customer_id BIGINT NOT NULL REFERENCES customers(id),
            customer_name TEXT NOT NULL DEFAULT '',
            amount BIGINT NOT NULL,
            payment_proof TEXT NOT NULL,
            status TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'cancelled', 'failed')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            completed_at TIMESTAMPTZ,
            operator_notes TEXT
        )`,
		`CREATE TABLE IF NOT EXISTS payment_channels (
            id BIGSERIAL PRIMARY KEY,
            method TEXT UNIQUE NOT NULL,
            account_number TEXT NOT NULL,
            holder_name TEXT NOT NULL,
            active BOOLEAN NOT NULL DEFAULT TRUE
        )`,
		`CREATE TABLE IF NOT EXISTS settings (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_items_unsold ON items(sold, added_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status, created_at)`,
		`INSERT INTO settings (key, value) VALUES
            ('price', '50000'),
            ('maintenance_mode', 'off'),
            ('min_purchase', '1'),
            ('max_purchase', '1')
        ON CONFLICT (key) DO NOTHING`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// WithinTransaction executes function inside transaction boundary.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapErr("begin", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Warn("rollback failed", slog.String("error", rbErr.Error()))
			}
		} else if cErr := tx.Commit(ctx); cErr != nil {
			err = wrapErr("commit", cErr)
		}
	}()

	err = fn(tx)
	return err
}

// WithinLedger runs allocation steps in a single transaction.
func (s *Storage) WithinLedger(ctx context.Context, fn func(repository.LedgerTx) error) error {
	return s.WithinTransaction(ctx, func(tx pgx.Tx) error {
		return fn(&ledgerTx{tx: tx})
	})
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// wrapErr marks driver failures as storage failures. Domain errors pass through.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var storageErr *domainErrors.StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &domainErrors.StorageError{Op: op, Err: err}
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

const itemColumns = `id, login, secret, notes, sold, buyer_id, buyer_name, sold_at, added_at`

func scanItem(row pgx.Row) (*model.Item, error) {
	var it model.Item
	if err := row.Scan(&it.ID, &it.Login, &it.Secret, &it.Notes, &it.Sold, &it.BuyerID, &it.BuyerName, &it.SoldAt, &it.AddedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

const orderColumns = `id, item_id, customer_id, customer_name, amount, payment_proof, status, created_at, completed_at, operator_notes`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	if err := row.Scan(&o.ID, &o.ItemID, &o.CustomerID, &o.CustomerName, &o.Amount, &o.PaymentProof, &o.Status, &o.CreatedAt, &o.CompletedAt, &o.Notes); err != nil {
		return nil, err
	}
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()
	var result []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
