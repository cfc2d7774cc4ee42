package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/polkiloo/vendbot/internal/conversation"
	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/pkg/format"
	"github.com/polkiloo/vendbot/internal/usecase"
)

const (
	promptAddItem           = "➕ Send the item as login|password or login|password|notes.\nSend /cancel to stop."
	promptDeleteItem        = "🗑 Send the id of the item to delete.\nSend /cancel to stop."
	promptDeleteItemConfirm = "Reply YES to delete the item, or FORCE to delete it even if it was sold.\nSend /cancel to stop."
	promptSetPrice          = "💰 Send the new price, e.g. 50000 or 50.000.\nSend /cancel to stop."
	promptAddPaymentChannel = "💳 Send the channel as METHOD|ACCOUNT NUMBER|HOLDER NAME.\nSend /cancel to stop."
	promptBroadcast         = "📢 Send the message for all customers.\nSend /cancel_broadcast to stop."
	promptPaymentProof      = "📤 Send a photo or image file of your transfer receipt.\nSend /cancel to stop."
)

const dataItemID = "item_id"

func (r *Router) registerFlows() {
	r.machine.Handle(conversation.StepAddItem, promptAddItem, r.addItemStep)
	r.machine.Handle(conversation.StepDeleteItem, promptDeleteItem, r.deleteItemStep)
	r.machine.Handle(conversation.StepDeleteItemConfirm, promptDeleteItemConfirm, r.deleteItemConfirmStep)
	r.machine.Handle(conversation.StepSetPrice, promptSetPrice, r.setPriceStep)
	r.machine.Handle(conversation.StepAddPaymentChannel, promptAddPaymentChannel, r.addPaymentChannelStep)
	r.machine.Handle(conversation.StepBroadcast, promptBroadcast, r.broadcastStep)
	r.machine.Handle(conversation.StepPaymentProof, promptPaymentProof, r.paymentProofStep)
}

func (r *Router) addItemStep(ctx context.Context, _ model.Conversation, in conversation.Input) (conversation.Transition, error) {
	item, err := r.facade.AddItem(ctx, in.Text)
	if errors.Is(err, domainErrors.ErrAlreadyExists) {
		return conversation.Transition{}, domainErrors.Invalid("login", "this login is already in stock")
	}
	if err != nil {
		return conversation.Transition{}, err
	}
	stock, err := r.facade.Stock(ctx)
	if err != nil {
		return conversation.Transition{}, err
	}
	return conversation.Transition{
		Reply: fmt.Sprintf("✅ Item #%d (%s) added. Available: %d.", item.ID, item.Login, stock.Available),
	}, nil
}

func (r *Router) deleteItemStep(ctx context.Context, _ model.Conversation, in conversation.Input) (conversation.Transition, error) {
	id, err := usecase.ParseID("item id", in.Text)
	if err != nil {
		return conversation.Transition{}, err
	}
	item, err := r.facade.Item(ctx, id)
	if errors.Is(err, domainErrors.ErrNotFound) {
		return conversation.Transition{}, domainErrors.Invalid("item id", fmt.Sprintf("no item #%d", id))
	}
	if err != nil {
		return conversation.Transition{}, err
	}

	state := "available"
	if item.Sold {
		state = "sold"
	}
	return conversation.Transition{
		Next:     conversation.StepDeleteItemConfirm,
		Data:     map[string]string{dataItemID: strconv.FormatInt(id, 10)},
		Reply:    fmt.Sprintf("Item #%d %s (%s).\n%s", item.ID, item.Login, state, promptDeleteItemConfirm),
		Keyboard: model.Keyboard{{button("🗑 Delete", ActionItemDeleteOK, id)}},
	}, nil
}

func (r *Router) deleteItemConfirmStep(ctx context.Context, state model.Conversation, in conversation.Input) (conversation.Transition, error) {
	id, err := usecase.ParseID("item id", state.Data[dataItemID])
	if err != nil {
		return conversation.Transition{}, fmt.Errorf("conversation lost item id: %w", err)
	}

	var force bool
	switch strings.ToLower(strings.TrimSpace(in.Text)) {
	case "yes", "y":
	case "force":
		force = true
	default:
		return conversation.Transition{}, domainErrors.Invalid("confirmation", "reply YES or FORCE")
	}

	err = r.facade.DeleteItem(ctx, id, force)
	if errors.Is(err, domainErrors.ErrForeignKeyConflict) {
		return conversation.Transition{
			Next:  conversation.StepDeleteItemConfirm,
			Reply: fmt.Sprintf("⚠️ Item #%d belongs to a completed order. Reply FORCE to delete it anyway, or /cancel.", id),
		}, nil
	}
	if err != nil {
		return conversation.Transition{}, err
	}
	return conversation.Transition{Reply: fmt.Sprintf("🗑 Item #%d deleted.", id)}, nil
}

func (r *Router) setPriceStep(ctx context.Context, _ model.Conversation, in conversation.Input) (conversation.Transition, error) {
	price, err := r.facade.SetPrice(ctx, in.Text)
	if err != nil {
		return conversation.Transition{}, err
	}
	return conversation.Transition{Reply: "✅ Price set to " + format.Money(price) + "."}, nil
}

func (r *Router) addPaymentChannelStep(ctx context.Context, _ model.Conversation, in conversation.Input) (conversation.Transition, error) {
	ch, err := r.facade.AddPaymentChannel(ctx, in.Text)
	if err != nil {
		return conversation.Transition{}, err
	}
	return conversation.Transition{
		Reply: fmt.Sprintf("✅ Payment channel %s saved: %s (%s).", ch.Method, ch.AccountNumber, ch.Holder),
	}, nil
}

func (r *Router) broadcastStep(ctx context.Context, _ model.Conversation, in conversation.Input) (conversation.Transition, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return conversation.Transition{}, domainErrors.Invalid("message", "send the text to broadcast")
	}
	report, err := r.facade.Broadcast(ctx, text)
	if err != nil {
		return conversation.Transition{}, err
	}
	return conversation.Transition{
		Reply: fmt.Sprintf("📢 Broadcast finished: %d sent, %d failed, %d blocked.", report.Sent, report.Failed, report.Blocked),
	}, nil
}

func (r *Router) paymentProofStep(ctx context.Context, _ model.Conversation, in conversation.Input) (conversation.Transition, error) {
	order, err := r.facade.Submit(ctx, in.UserID, in.Username, in.Attachment)
	if err != nil {
		return conversation.Transition{}, err
	}
	r.notifyAdminsOfOrder(ctx, in, order)
	return conversation.Transition{
		Reply: fmt.Sprintf("✅ Receipt received. Order #%d (%s) is waiting for review; you will get the login here once it is approved.",
			order.ID, format.Money(order.Amount)),
	}, nil
}
