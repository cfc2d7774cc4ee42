package usecase

import (
	"context"
	"strings"

	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/domain/repository"
)

// CustomerUseCase tracks who has talked to the bot.
type CustomerUseCase struct {
	customers repository.CustomerRepository
}

// NewCustomerUseCase constructs CustomerUseCase.
func NewCustomerUseCase(customers repository.CustomerRepository) *CustomerUseCase {
	return &CustomerUseCase{customers: customers}
}

// Register records first contact and refreshes the display name.
func (u *CustomerUseCase) Register(ctx context.Context, id int64, name string) (*model.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "customer"
	}
	return u.customers.Register(ctx, id, name)
}

// Active returns every customer that can still be messaged.
func (u *CustomerUseCase) Active(ctx context.Context) ([]model.Customer, error) {
	return u.customers.ListActive(ctx)
}

// CountActive returns the number of reachable customers.
func (u *CustomerUseCase) CountActive(ctx context.Context) (int, error) {
	return u.customers.CountActive(ctx)
}

// MarkBlocked flags unreachable customers in one batch.
func (u *CustomerUseCase) MarkBlocked(ctx context.Context, ids []int64) (int, error) {
	return u.customers.MarkBlocked(ctx, ids)
}
