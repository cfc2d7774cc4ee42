// Package bot turns chat updates into storefront operations.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/polkiloo/vendbot/internal/conversation"
	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/notify"
	"github.com/polkiloo/vendbot/internal/usecase"
)

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard model.Keyboard) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, keyboard model.Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	ForwardMessage(ctx context.Context, toChatID, fromChatID, messageID int64) error
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, keyboard model.Keyboard) (int64, error)
	SendDocument(ctx context.Context, chatID int64, filename string, content []byte, caption string) error
}

// Facade is the storefront surface the bot drives.
type Facade interface {
	IsAdmin(userID int64) bool
	AdminIDs() []int64
	StoreName() string
	AdminContact() string

	RegisterCustomer(ctx context.Context, id int64, name string) error
	Submit(ctx context.Context, customerID int64, name string, proof *model.Attachment) (*model.Order, error)
	Order(ctx context.Context, id int64) (*model.Order, error)
	Pending(ctx context.Context, limit int) ([]model.Order, error)
	SalesReport(ctx context.Context) ([]model.Order, error)
	Stats(ctx context.Context) (model.SalesStats, error)

	Approve(ctx context.Context, orderID int64) (*model.Fulfillment, error)
	Reject(ctx context.Context, orderID int64, reason string) (*model.Order, error)
	Assign(ctx context.Context, orderID, itemID int64) (*model.Order, error)

	AddItem(ctx context.Context, raw string) (*model.Item, error)
	Item(ctx context.Context, id int64) (*model.Item, error)
	DeleteItem(ctx context.Context, id int64, force bool) error
	AvailableItems(ctx context.Context, limit int) ([]model.Item, error)
	Stock(ctx context.Context) (model.StockCount, error)

	Price(ctx context.Context) (int64, error)
	SetPrice(ctx context.Context, raw string) (int64, error)
	Maintenance(ctx context.Context) (bool, error)
	ToggleMaintenance(ctx context.Context) (bool, error)

	PaymentChannels(ctx context.Context, activeOnly bool) ([]model.PaymentChannel, error)
	AddPaymentChannel(ctx context.Context, raw string) (*model.PaymentChannel, error)
	TogglePaymentChannel(ctx context.Context, id int64) (*model.PaymentChannel, error)
	DeletePaymentChannel(ctx context.Context, id int64) error

	Broadcast(ctx context.Context, text string) (notify.Report, error)
}

const (
	pendingListLimit = 10
	itemListLimit    = 15
)

// Router handles every inbound update: a pending conversation gets the
// message first, then the command switch runs.
type Router struct {
	facade    Facade
	machine   *conversation.Machine
	messenger Messenger
	logger    *slog.Logger
	now       func() time.Time
}

// NewRouter constructs Router and registers the conversation steps on machine.
func NewRouter(facade Facade, machine *conversation.Machine, messenger Messenger, logger *slog.Logger) *Router {
	r := &Router{facade: facade, machine: machine, messenger: messenger, logger: logger, now: time.Now}
	r.registerFlows()
	return r
}

func userOf(u model.Update) int64 {
	if u.UserID != 0 {
		return u.UserID
	}
	return u.ChatID
}

// HandleUpdate processes one update. Errors the user can act on are answered
// in chat and not returned.
func (r *Router) HandleUpdate(ctx context.Context, u model.Update) error {
	if u.ChatID == 0 {
		return nil
	}
	if u.IsCallback() {
		return r.handleCallback(ctx, u)
	}
	return r.handleMessage(ctx, u)
}

func (r *Router) handleMessage(ctx context.Context, u model.Update) error {
	res, err := r.machine.Dispatch(ctx, conversation.Input{
		ChatID:     u.ChatID,
		UserID:     userOf(u),
		Username:   u.Username,
		MessageID:  u.MessageID,
		Text:       u.Text,
		Attachment: u.Attachment,
	})
	if err != nil {
		return r.fail(ctx, u.ChatID, err)
	}
	if res.Handled {
		if res.Reply == "" {
			return nil
		}
		return r.reply(ctx, u.ChatID, res.Reply, res.Keyboard)
	}

	cmd, ok := ParseCommand(u.Text)
	if !ok {
		if u.Attachment != nil {
			return r.reply(ctx, u.ChatID, "To buy, press "+LabelBuy+" first and then send your receipt.", customerMenu())
		}
		return r.reply(ctx, u.ChatID, "Unknown command. Send /help to see what I can do.", nil)
	}

	admin := r.facade.IsAdmin(userOf(u))
	if adminCommands[cmd.Kind] && !admin {
		return r.reply(ctx, u.ChatID, "This command is for operators only.", nil)
	}
	if !admin && cmd.Kind != CmdHelp {
		closed, err := r.facade.Maintenance(ctx)
		if err != nil {
			return r.fail(ctx, u.ChatID, err)
		}
		if closed {
			return r.fail(ctx, u.ChatID, domainErrors.ErrMaintenance)
		}
	}

	return r.runCommand(ctx, u, cmd, admin)
}

func (r *Router) runCommand(ctx context.Context, u model.Update, cmd Command, admin bool) error {
	chat := u.ChatID
	switch cmd.Kind {
	case CmdStart:
		return r.start(ctx, u, admin)
	case CmdHelp:
		return r.reply(ctx, chat, helpText(admin), nil)
	case CmdBuy:
		return r.showPurchase(ctx, chat)
	case CmdPrice:
		return r.showPrice(ctx, chat)
	case CmdStock:
		if admin {
			return r.showItems(ctx, chat)
		}
		return r.showStock(ctx, chat)
	case CmdCancel:
		return r.reply(ctx, chat, "Nothing to cancel.", nil)
	case CmdAdmin:
		return r.showAdminMenu(ctx, chat)
	case CmdPending:
		return r.showPending(ctx, chat)
	case CmdApprove:
		id, err := parseArgID(cmd, 0, "order id")
		if err != nil {
			return r.fail(ctx, chat, err)
		}
		return r.approve(ctx, chat, id)
	case CmdReject:
		id, err := parseArgID(cmd, 0, "order id")
		if err != nil {
			return r.fail(ctx, chat, err)
		}
		return r.reject(ctx, chat, id, cmd.Rest(1))
	case CmdAssign:
		orderID, err := parseArgID(cmd, 0, "order id")
		if err != nil {
			return r.fail(ctx, chat, err)
		}
		itemID, err := parseArgID(cmd, 1, "item id")
		if err != nil {
			return r.fail(ctx, chat, err)
		}
		return r.assign(ctx, chat, orderID, itemID)
	case CmdStats:
		return r.showStats(ctx, chat)
	case CmdReport:
		return r.sendReport(ctx, chat)
	case CmdMaintenance:
		return r.toggleMaintenance(ctx, chat, 0)
	case CmdBroadcast:
		return r.begin(ctx, chat, conversation.StepBroadcast, nil)
	case CmdAddItem:
		return r.begin(ctx, chat, conversation.StepAddItem, nil)
	case CmdDeleteItem:
		return r.begin(ctx, chat, conversation.StepDeleteItem, nil)
	case CmdSetPrice:
		return r.begin(ctx, chat, conversation.StepSetPrice, nil)
	case CmdPayments:
		return r.showPaymentChannels(ctx, chat, 0)
	}
	return nil
}

func (r *Router) handleCallback(ctx context.Context, u model.Update) error {
	if err := r.messenger.AnswerCallback(ctx, u.CallbackID, ""); err != nil {
		r.logger.Debug("answer callback failed", slog.String("error", err.Error()))
	}

	cb, err := ParseCallback(u.CallbackData)
	if err != nil {
		r.logger.Warn("unexpected callback data", slog.Int64("chat_id", u.ChatID), slog.String("data", u.CallbackData))
		return nil
	}
	if cb.Admin() && !r.facade.IsAdmin(userOf(u)) {
		return r.reply(ctx, u.ChatID, "This action is for operators only.", nil)
	}

	chat := u.ChatID
	switch cb.Action {
	case ActionBuyProof:
		closed, err := r.facade.Maintenance(ctx)
		if err != nil {
			return r.fail(ctx, chat, err)
		}
		if closed && !r.facade.IsAdmin(userOf(u)) {
			return r.fail(ctx, chat, domainErrors.ErrMaintenance)
		}
		return r.begin(ctx, chat, conversation.StepPaymentProof, nil)
	case ActionAdminMenu:
		return r.showAdminMenu(ctx, chat)
	case ActionItemAdd:
		return r.begin(ctx, chat, conversation.StepAddItem, nil)
	case ActionItemDelete:
		return r.begin(ctx, chat, conversation.StepDeleteItem, nil)
	case ActionItemDeleteOK:
		if err := r.machine.Cancel(ctx, chat); err != nil {
			return r.fail(ctx, chat, err)
		}
		return r.deleteItem(ctx, chat, cb.ID, false)
	case ActionItemList:
		return r.showItems(ctx, chat)
	case ActionPaymentList:
		return r.showPaymentChannels(ctx, chat, 0)
	case ActionPaymentAdd:
		return r.begin(ctx, chat, conversation.StepAddPaymentChannel, nil)
	case ActionPaymentToggle:
		if _, err := r.facade.TogglePaymentChannel(ctx, cb.ID); err != nil {
			return r.fail(ctx, chat, err)
		}
		return r.showPaymentChannels(ctx, chat, u.MessageID)
	case ActionPaymentDelete:
		if err := r.facade.DeletePaymentChannel(ctx, cb.ID); err != nil {
			return r.fail(ctx, chat, err)
		}
		return r.showPaymentChannels(ctx, chat, u.MessageID)
	case ActionPriceSet:
		return r.begin(ctx, chat, conversation.StepSetPrice, nil)
	case ActionMaintenance:
		return r.toggleMaintenance(ctx, chat, u.MessageID)
	case ActionSalesReport:
		return r.sendReport(ctx, chat)
	case ActionPendingOrders:
		return r.showPending(ctx, chat)
	case ActionBroadcast:
		return r.begin(ctx, chat, conversation.StepBroadcast, nil)
	case ActionStats:
		return r.showStats(ctx, chat)
	case ActionOrderApprove:
		return r.approve(ctx, chat, cb.ID)
	case ActionOrderReject:
		return r.reject(ctx, chat, cb.ID, "")
	}
	return nil
}

func (r *Router) begin(ctx context.Context, chatID int64, step conversation.Step, data map[string]string) error {
	prompt, err := r.machine.Begin(ctx, chatID, step, data)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	return r.reply(ctx, chatID, prompt, nil)
}

func (r *Router) reply(ctx context.Context, chatID int64, text string, kb model.Keyboard) error {
	if _, err := r.messenger.SendMessage(ctx, chatID, text, kb); err != nil {
		return fmt.Errorf("reply to %d: %w", chatID, err)
	}
	return nil
}

// fail answers err in chat. Only failures the user cannot act on are returned.
func (r *Router) fail(ctx context.Context, chatID int64, err error) error {
	text, expected := describe(err)
	if sendErr := r.reply(ctx, chatID, text, nil); sendErr != nil {
		r.logger.Warn("failed to report error", slog.Int64("chat_id", chatID), slog.String("error", sendErr.Error()))
	}
	if expected {
		r.logger.Debug("request refused", slog.Int64("chat_id", chatID), slog.String("reason", err.Error()))
		return nil
	}
	return err
}

// describe maps an error to chat text and whether it is an expected refusal.
func describe(err error) (string, bool) {
	var (
		vErr   *domainErrors.ValidationError
		finErr *domainErrors.AlreadyFinalizedError
	)
	switch {
	case errors.As(err, &vErr):
		return "❌ " + vErr.Error(), true
	case errors.As(err, &finErr):
		return fmt.Sprintf("ℹ️ Order #%d is already %s.", finErr.OrderID, finErr.Status), true
	case errors.Is(err, domainErrors.ErrMaintenance):
		return "🔧 The store is under maintenance. Please try again later.", true
	case errors.Is(err, domainErrors.ErrStockExhausted):
		return "😔 Sorry, we are out of stock right now.", true
	case errors.Is(err, domainErrors.ErrPurchaseLimit):
		return "⏳ You already have an order waiting for review.", true
	case errors.Is(err, domainErrors.ErrAllocationConflict):
		return "⚠️ Could not allocate an item, another approval took it. Try again.", true
	case errors.Is(err, domainErrors.ErrForeignKeyConflict):
		return "⚠️ The item belongs to a completed order.", true
	case errors.Is(err, domainErrors.ErrAlreadyExists):
		return "⚠️ That already exists.", true
	case errors.Is(err, domainErrors.ErrNotFound):
		return "❓ Not found: " + err.Error(), true
	default:
		return "⚠️ Something went wrong. Please try again later.", false
	}
}

func parseArgID(cmd Command, i int, field string) (int64, error) {
	raw := cmd.Arg(i)
	if raw == "" {
		return 0, domainErrors.Invalid(field, fmt.Sprintf("usage: /%s %s", cmd.Kind, usage(cmd.Kind)))
	}
	return usecase.ParseID(field, raw)
}

func usage(kind CommandKind) string {
	switch kind {
	case CmdReject:
		return "<order id> [reason]"
	case CmdAssign:
		return "<order id> <item id>"
	default:
		return "<order id>"
	}
}
