package repository

import (
	"context"

	"github.com/polkiloo/vendbot/internal/domain/model"
)

// CustomerRepository tracks chat users and their reachability.
type CustomerRepository interface {
	Register(ctx context.Context, id int64, name string) (*model.Customer, error)
	Get(ctx context.Context, id int64) (*model.Customer, error)
	ListActive(ctx context.Context) ([]model.Customer, error)
	CountActive(ctx context.Context) (int, error)
	MarkBlocked(ctx context.Context, ids []int64) (int, error)
}

// PaymentChannelRepository manages accounts customers pay into.
type PaymentChannelRepository interface {
	Upsert(ctx context.Context, method, number, holder string) (*model.PaymentChannel, error)
	List(ctx context.Context, activeOnly bool) ([]model.PaymentChannel, error)
	Toggle(ctx context.Context, id int64) (*model.PaymentChannel, error)
	Delete(ctx context.Context, id int64) error
}

// SettingsRepository is the key/value settings map.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
