package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/polkiloo/vendbot/internal/config"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/notify"
	"github.com/polkiloo/vendbot/internal/pkg/format"
	"github.com/polkiloo/vendbot/internal/usecase"
)

// StoreFacade is the single entry point the bot, the HTTP API and the CLI use.
type StoreFacade struct {
	orders      *usecase.OrderUseCase
	allocation  *usecase.AllocationUseCase
	inventory   *usecase.InventoryUseCase
	customers   *usecase.CustomerUseCase
	payments    *usecase.PaymentChannelUseCase
	settings    *usecase.SettingsUseCase
	auth        *usecase.OperatorAuthUseCase
	broadcaster *notify.Broadcaster
	sender      notify.Sender
	cfg         *config.Config
	logger      *slog.Logger
}

// UseCases groups the use cases a StoreFacade delegates to.
type UseCases struct {
	Orders     *usecase.OrderUseCase
	Allocation *usecase.AllocationUseCase
	Inventory  *usecase.InventoryUseCase
	Customers  *usecase.CustomerUseCase
	Payments   *usecase.PaymentChannelUseCase
	Settings   *usecase.SettingsUseCase
	Auth       *usecase.OperatorAuthUseCase
}

// NewStoreFacade constructs StoreFacade.
func NewStoreFacade(uc UseCases, broadcaster *notify.Broadcaster, sender notify.Sender, cfg *config.Config, logger *slog.Logger) *StoreFacade {
	return &StoreFacade{
		orders:      uc.Orders,
		allocation:  uc.Allocation,
		inventory:   uc.Inventory,
		customers:   uc.Customers,
		payments:    uc.Payments,
		settings:    uc.Settings,
		auth:        uc.Auth,
		broadcaster: broadcaster,
		sender:      sender,
		cfg:         cfg,
		logger:      logger,
	}
}

// IsAdmin reports whether userID is a configured operator.
func (f *StoreFacade) IsAdmin(userID int64) bool {
	return f.cfg.IsAdmin(userID)
}

// AdminIDs returns the operator chat ids.
func (f *StoreFacade) AdminIDs() []int64 {
	return f.cfg.AdminIDs
}

// StoreName returns the configured storefront name.
func (f *StoreFacade) StoreName() string {
	return f.cfg.StoreName
}

// AdminContact returns the operator handle customers are pointed to.
func (f *StoreFacade) AdminContact() string {
	return f.cfg.AdminUsername
}

func (f *StoreFacade) RegisterCustomer(ctx context.Context, id int64, name string) error {
	_, err := f.customers.Register(ctx, id, name)
	return err
}

// Submit records a purchase for the customer's payment proof.
func (f *StoreFacade) Submit(ctx context.Context, customerID int64, name string, proof *model.Attachment) (*model.Order, error) {
	return f.orders.Submit(ctx, customerID, name, proof)
}

func (f *StoreFacade) Order(ctx context.Context, id int64) (*model.Order, error) {
	return f.orders.Get(ctx, id)
}

func (f *StoreFacade) Pending(ctx context.Context, limit int) ([]model.Order, error) {
	return f.orders.Pending(ctx, limit)
}

func (f *StoreFacade) SalesReport(ctx context.Context) ([]model.Order, error) {
	return f.orders.Report(ctx)
}

// Stats returns sales totals together with customer and stock counts.
func (f *StoreFacade) Stats(ctx context.Context) (model.SalesStats, error) {
	stats, err := f.orders.Stats(ctx)
	if err != nil {
		return model.SalesStats{}, err
	}
	customers, err := f.customers.CountActive(ctx)
	if err != nil {
		return model.SalesStats{}, err
	}
	stock, err := f.inventory.Stock(ctx)
	if err != nil {
		return model.SalesStats{}, err
	}
	stats.Customers = customers
	stats.ItemsTotal = stock.Total
	stats.ItemsAvailable = stock.Available
	return stats, nil
}

// Approve allocates an item to the order and delivers the credential to the buyer.
func (f *StoreFacade) Approve(ctx context.Context, orderID int64) (*model.Fulfillment, error) {
	alloc, err := f.allocation.Approve(ctx, orderID)
	if err != nil {
		return nil, err
	}
	res := &model.Fulfillment{Allocation: alloc}
	if _, err := f.sender.SendMessage(ctx, alloc.Order.CustomerID, DeliveryMessage(alloc), nil); err != nil {
		f.logger.Error("credential delivery failed",
			slog.Int64("order_id", orderID),
			slog.Int64("customer_id", alloc.Order.CustomerID),
			slog.String("error", err.Error()),
		)
		res.DeliveryErr = err
		f.NotifyAdmins(ctx, fmt.Sprintf("⚠️ Order #%d is completed but the credential could not be delivered to %d. Send item #%d manually.",
			orderID, alloc.Order.CustomerID, alloc.Item.ID))
		return res, nil
	}
	res.Delivered = true
	return res, nil
}

// Reject cancels the order and tells the customer why.
func (f *StoreFacade) Reject(ctx context.Context, orderID int64, reason string) (*model.Order, error) {
	order, err := f.allocation.Reject(ctx, orderID, reason)
	if err != nil {
		return nil, err
	}
	notes := usecase.DefaultRejectReason
	if order.Notes != nil {
		notes = *order.Notes
	}
	f.broadcaster.Notify(ctx, order.CustomerID, fmt.Sprintf("❌ Order #%d was rejected.\nReason: %s", order.ID, notes))
	return order, nil
}

// Assign pins a specific item to a pending order.
func (f *StoreFacade) Assign(ctx context.Context, orderID, itemID int64) (*model.Order, error) {
	return f.allocation.Assign(ctx, orderID, itemID)
}

func (f *StoreFacade) AddItem(ctx context.Context, raw string) (*model.Item, error) {
	return f.inventory.Add(ctx, raw)
}

func (f *StoreFacade) Item(ctx context.Context, id int64) (*model.Item, error) {
	return f.inventory.Get(ctx, id)
}

func (f *StoreFacade) DeleteItem(ctx context.Context, id int64, force bool) error {
	return f.inventory.Delete(ctx, id, force)
}

func (f *StoreFacade) AvailableItems(ctx context.Context, limit int) ([]model.Item, error) {
	return f.inventory.Available(ctx, limit)
}

func (f *StoreFacade) Stock(ctx context.Context) (model.StockCount, error) {
	return f.inventory.Stock(ctx)
}

func (f *StoreFacade) Price(ctx context.Context) (int64, error) {
	return f.settings.Price(ctx)
}

func (f *StoreFacade) SetPrice(ctx context.Context, raw string) (int64, error) {
	return f.settings.SetPrice(ctx, raw)
}

func (f *StoreFacade) Maintenance(ctx context.Context) (bool, error) {
	return f.settings.Maintenance(ctx)
}

func (f *StoreFacade) ToggleMaintenance(ctx context.Context) (bool, error) {
	return f.settings.ToggleMaintenance(ctx)
}

func (f *StoreFacade) PaymentChannels(ctx context.Context, activeOnly bool) ([]model.PaymentChannel, error) {
	return f.payments.List(ctx, activeOnly)
}

func (f *StoreFacade) AddPaymentChannel(ctx context.Context, raw string) (*model.PaymentChannel, error) {
	return f.payments.Add(ctx, raw)
}

func (f *StoreFacade) TogglePaymentChannel(ctx context.Context, id int64) (*model.PaymentChannel, error) {
	return f.payments.Toggle(ctx, id)
}

func (f *StoreFacade) DeletePaymentChannel(ctx context.Context, id int64) error {
	return f.payments.Delete(ctx, id)
}

// Broadcast sends text to every customer that has not blocked the bot.
func (f *StoreFacade) Broadcast(ctx context.Context, text string) (notify.Report, error) {
	active, err := f.customers.Active(ctx)
	if err != nil {
		return notify.Report{}, err
	}
	ids := make([]int64, 0, len(active))
	for _, c := range active {
		ids = append(ids, c.ID)
	}
	return f.broadcaster.Broadcast(ctx, text, ids), nil
}

// NotifyAdmins informs every operator; failures are only logged.
func (f *StoreFacade) NotifyAdmins(ctx context.Context, text string) {
	f.broadcaster.NotifyAdmins(ctx, f.cfg, text)
}

func (f *StoreFacade) Login(ctx context.Context, operatorID int64, password string) (string, error) {
	return f.auth.Login(ctx, operatorID, password)
}

func (f *StoreFacade) ParseToken(token string) (int64, error) {
	return f.auth.ParseToken(token)
}

// DeliveryMessage is the text that hands a sold credential to its buyer.
func DeliveryMessage(a *model.Allocation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Order #%d approved (%s).\n\n", a.Order.ID, format.Money(a.Order.Amount))
	fmt.Fprintf(&b, "Login: %s\nPassword: %s\n", a.Item.Login, a.Item.Secret)
	if a.Item.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", a.Item.Notes)
	}
	b.WriteString("\nPlease change the password after your first login.")
	return b.String()
}
