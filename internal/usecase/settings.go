package usecase

import (
	"context"
	"errors"
	"strconv"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/domain/repository"
)

// SettingsUseCase exposes typed access to the settings map.
type SettingsUseCase struct {
	settings repository.SettingsRepository
}

// NewSettingsUseCase constructs SettingsUseCase.
func NewSettingsUseCase(settings repository.SettingsRepository) *SettingsUseCase {
	return &SettingsUseCase{settings: settings}
}

// get falls back to the seeded default when the key is absent.
func (u *SettingsUseCase) get(ctx context.Context, key string) (string, error) {
	v, err := u.settings.Get(ctx, key)
	if errors.Is(err, domainErrors.ErrNotFound) {
		return model.DefaultSettings[key], nil
	}
	return v, err
}

func (u *SettingsUseCase) getInt(ctx context.Context, key string) (int64, error) {
	v, err := u.get(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return strconv.ParseInt(model.DefaultSettings[key], 10, 64)
	}
	return n, nil
}

// Price returns the current unit price.
func (u *SettingsUseCase) Price(ctx context.Context) (int64, error) {
	return u.getInt(ctx, model.SettingPrice)
}

// SetPrice parses and stores a new unit price.
func (u *SettingsUseCase) SetPrice(ctx context.Context, raw string) (int64, error) {
	price, err := ParsePrice(raw)
	if err != nil {
		return 0, err
	}
	if err := u.settings.Set(ctx, model.SettingPrice, strconv.FormatInt(price, 10)); err != nil {
		return 0, err
	}
	return price, nil
}

// Maintenance reports whether the store is closed to customers.
func (u *SettingsUseCase) Maintenance(ctx context.Context) (bool, error) {
	v, err := u.get(ctx, model.SettingMaintenance)
	if err != nil {
		return false, err
	}
	return v == "on", nil
}

// ToggleMaintenance flips maintenance mode and returns the new state.
func (u *SettingsUseCase) ToggleMaintenance(ctx context.Context) (bool, error) {
	on, err := u.Maintenance(ctx)
	if err != nil {
		return false, err
	}
	next := "on"
	if on {
		next = "off"
	}
	if err := u.settings.Set(ctx, model.SettingMaintenance, next); err != nil {
		return false, err
	}
	return !on, nil
}

// Limits returns the per-customer purchase bounds.
func (u *SettingsUseCase) Limits(ctx context.Context) (model.PurchaseLimits, error) {
	lo, err := u.getInt(ctx, model.SettingMinPurchase)
	if err != nil {
		return model.PurchaseLimits{}, err
	}
	hi, err := u.getInt(ctx, model.SettingMaxPurchase)
	if err != nil {
		return model.PurchaseLimits{}, err
	}
	return model.PurchaseLimits{Min: int(lo), Max: int(hi)}, nil
}
