package usecase

import (
	"context"
	"time"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/domain/repository"
)

// ReportWindow is how far back the sales report looks.
const ReportWindow = 30 * 24 * time.Hour

// OrderUseCase covers order submission and read models.
type OrderUseCase struct {
	orders    repository.OrderRepository
	items     repository.InventoryRepository
	customers repository.CustomerRepository
	settings  *SettingsUseCase
	now       func() time.Time
}

// NewOrderUseCase constructs OrderUseCase.
func NewOrderUseCase(
	orders repository.OrderRepository,
	items repository.InventoryRepository,
	customers repository.CustomerRepository,
	settings *SettingsUseCase,
) *OrderUseCase {
	return &OrderUseCase{orders: orders, items: items, customers: customers, settings: settings, now: time.Now}
}

// Submit records a pending order for the customer's payment proof at the current price.
func (u *OrderUseCase) Submit(ctx context.Context, customerID int64, customerName string, proof *model.Attachment) (*model.Order, error) {
	closed, err := u.settings.Maintenance(ctx)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, domainErrors.ErrMaintenance
	}

	stock, err := u.items.Count(ctx)
	if err != nil {
		return nil, err
	}
	if stock.Available == 0 {
		return nil, domainErrors.ErrStockExhausted
	}

	if !proof.IsImage() {
		return nil, domainErrors.Invalid("proof", "send the transfer receipt as a photo or image file")
	}

	limits, err := u.settings.Limits(ctx)
	if err != nil {
		return nil, err
	}
	open, err := u.orders.CountPendingByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if limits.Max > 0 && open >= limits.Max {
		return nil, domainErrors.ErrPurchaseLimit
	}

	price, err := u.settings.Price(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := u.customers.Register(ctx, customerID, customerName); err != nil {
		return nil, err
	}

	return u.orders.Create(ctx, repository.NewOrder{
		CustomerID:   customerID,
		CustomerName: customerName,
		Amount:       price,
		PaymentProof: proof.FileID,
		MaxPending:   limits.Max,
	})
}

// Get returns one order.
func (u *OrderUseCase) Get(ctx context.Context, id int64) (*model.Order, error) {
	return u.orders.Get(ctx, id)
}

// Pending lists pending orders oldest first.
func (u *OrderUseCase) Pending(ctx context.Context, limit int) ([]model.Order, error) {
	return u.orders.ListPending(ctx, limit)
}

// Report returns completed and cancelled orders created inside ReportWindow, newest first.
func (u *OrderUseCase) Report(ctx context.Context) ([]model.Order, error) {
	return u.orders.ListFinalizedSince(ctx, u.now().Add(-ReportWindow))
}

// Stats aggregates sales, with "today" starting at local midnight.
func (u *OrderUseCase) Stats(ctx context.Context) (model.SalesStats, error) {
	now := u.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return u.orders.Stats(ctx, dayStart)
}
