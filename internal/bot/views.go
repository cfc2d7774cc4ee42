package bot

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/polkiloo/vendbot/internal/app"
	"github.com/polkiloo/vendbot/internal/conversation"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/pkg/format"
)

func button(text, action string, id int64) model.Button {
	return model.Button{Text: text, Data: CallbackData(action, id)}
}

func customerMenu() model.Keyboard {
	return model.Keyboard{{button(LabelBuy, ActionBuyProof, 0)}}
}

func adminMenu(maintenance bool) model.Keyboard {
	maint := "🔧 Maintenance: OFF"
	if maintenance {
		maint = "🔧 Maintenance: ON"
	}
	return model.Keyboard{
		{button("📋 Pending orders", ActionPendingOrders, 0), button("📊 Stats", ActionStats, 0)},
		{button("➕ Add item", ActionItemAdd, 0), button("🗑 Delete item", ActionItemDelete, 0)},
		{button("📦 Stock", ActionItemList, 0), button("💰 Set price", ActionPriceSet, 0)},
		{button("💳 Payment channels", ActionPaymentList, 0), button("📈 Sales report", ActionSalesReport, 0)},
		{button("📢 Broadcast", ActionBroadcast, 0), button(maint, ActionMaintenance, 0)},
	}
}

func orderKeyboard(orderID int64) model.Keyboard {
	return model.Keyboard{{
		button("✅ Approve", ActionOrderApprove, orderID),
		button("❌ Reject", ActionOrderReject, orderID),
	}}
}

func helpText(admin bool) string {
	var b strings.Builder
	b.WriteString("How to buy:\n")
	b.WriteString("1. Press " + LabelBuy + " or send /buy.\n")
	b.WriteString("2. Transfer the price to one of the payment channels.\n")
	b.WriteString("3. Send a photo of the receipt.\n")
	b.WriteString("4. You receive the login once an operator approves.\n\n")
	b.WriteString("/price shows the price, /stock the stock, /cancel stops the current step.")
	if admin {
		b.WriteString("\n\nOperator commands:\n")
		b.WriteString("/admin panel, /pending orders, /approve <id>, /reject <id> [reason],\n")
		b.WriteString("/assign <order> <item>, /stats, /report, /maintenance, /broadcast,\n")
		b.WriteString("/additem, /delitem, /setprice, /payments")
	}
	return b.String()
}

func (r *Router) start(ctx context.Context, u model.Update, admin bool) error {
	if err := r.facade.RegisterCustomer(ctx, userOf(u), u.Username); err != nil {
		return r.fail(ctx, u.ChatID, err)
	}
	price, err := r.facade.Price(ctx)
	if err != nil {
		return r.fail(ctx, u.ChatID, err)
	}
	stock, err := r.facade.Stock(ctx)
	if err != nil {
		return r.fail(ctx, u.ChatID, err)
	}

	name := u.Username
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi %s, welcome to %s!\n\nPrice: %s\nIn stock: %d\n\nPress %s to purchase.",
		name, r.facade.StoreName(), format.Money(price), stock.Available, LabelBuy)
	kb := customerMenu()
	if admin {
		kb = append(kb, []model.Button{button(LabelAdmin, ActionAdminMenu, 0)})
	}
	return r.reply(ctx, u.ChatID, text, kb)
}

func (r *Router) showPurchase(ctx context.Context, chatID int64) error {
	stock, err := r.facade.Stock(ctx)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	if stock.Available == 0 {
		return r.reply(ctx, chatID, "😔 Sorry, we are out of stock right now.", nil)
	}
	price, err := r.facade.Price(ctx)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	channels, err := r.facade.PaymentChannels(ctx, true)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🛒 Price: %s\n\n", format.Money(price))
	if len(channels) == 0 {
		b.WriteString("No payment channel is configured yet.")
		if contact := r.facade.AdminContact(); contact != "" {
			b.WriteString(" Contact @" + contact + ".")
		}
		return r.reply(ctx, chatID, b.String(), nil)
	}
	b.WriteString("Transfer to one of:\n")
	for _, ch := range channels {
		fmt.Fprintf(&b, "• %s: %s (%s)\n", ch.Method, ch.AccountNumber, ch.Holder)
	}
	b.WriteString("\nThen press the button below and send the receipt.")
	kb := model.Keyboard{{button("📤 Send payment proof", ActionBuyProof, 0)}}
	return r.reply(ctx, chatID, b.String(), kb)
}

func (r *Router) showPrice(ctx context.Context, chatID int64) error {
	price, err := r.facade.Price(ctx)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	return r.reply(ctx, chatID, "💰 Price: "+format.Money(price), nil)
}

func (r *Router) showStock(ctx context.Context, chatID int64) error {
	stock, err := r.facade.Stock(ctx)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	return r.reply(ctx, chatID, fmt.Sprintf("📦 In stock: %d", stock.Available), nil)
}

func (r *Router) showItems(ctx context.Context, chatID int64) error {
	stock, err := r.facade.Stock(ctx)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	items, err := r.facade.AvailableItems(ctx, itemListLimit)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📦 Stock: %d available, %d sold, %d total\n", stock.Available, stock.Sold(), stock.Total)
	if len(items) > 0 {
		b.WriteString("\nNext to be sold:\n")
	}
	for _, it := range items {
		fmt.Fprintf(&b, "#%d %s (added %s)\n", it.ID, it.Login, format.Time(it.AddedAt))
	}
	kb := model.Keyboard{{button("➕ Add item", ActionItemAdd, 0), button("🗑 Delete item", ActionItemDelete, 0)}}
	return r.reply(ctx, chatID, b.String(), kb)
}

func (r *Router) showAdminMenu(ctx context.Context, chatID int64) error {
	on, err := r.facade.Maintenance(ctx)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	return r.reply(ctx, chatID, "⚙️ Operator panel", adminMenu(on))
}

func (r *Router) toggleMaintenance(ctx context.Context, chatID, messageID int64) error {
	on, err := r.facade.ToggleMaintenance(ctx)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	text := "✅ Maintenance mode is OFF. The store is open."
	if on {
		text = "🔧 Maintenance mode is ON. Customers cannot buy."
	}
	if messageID != 0 {
		if err := r.messenger.EditMessageText(ctx, chatID, messageID, "⚙️ Operator panel\n"+text, adminMenu(on)); err == nil {
			return nil
		}
	}
	return r.reply(ctx, chatID, text, nil)
}

func orderLine(o model.Order) string {
	return fmt.Sprintf("#%d • %s (id %d) • %s • %s", o.ID, o.CustomerName, o.CustomerID, format.Money(o.Amount), format.Time(o.CreatedAt))
}

func (r *Router) showPending(ctx context.Context, chatID int64) error {
	orders, err := r.facade.Pending(ctx, pendingListLimit)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	if len(orders) == 0 {
		return r.reply(ctx, chatID, "✅ No pending orders.", nil)
	}
	var (
		b  strings.Builder
		kb model.Keyboard
	)
	b.WriteString("📋 Pending orders, oldest first:\n")
	for _, o := range orders {
		b.WriteString(orderLine(o) + "\n")
		kb = append(kb, []model.Button{
			button(fmt.Sprintf("✅ #%d", o.ID), ActionOrderApprove, o.ID),
			button(fmt.Sprintf("❌ #%d", o.ID), ActionOrderReject, o.ID),
		})
	}
	return r.reply(ctx, chatID, b.String(), kb)
}

func (r *Router) approve(ctx context.Context, chatID, orderID int64) error {
	res, err := r.facade.Approve(ctx, orderID)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	alloc := res.Allocation
	if !res.Delivered {
		text := fmt.Sprintf("⚠️ Order #%d approved with item #%d but delivery to %d failed: %v\nSend this manually:\n\n%s",
			orderID, alloc.Item.ID, alloc.Order.CustomerID, res.DeliveryErr, app.DeliveryMessage(alloc))
		return r.reply(ctx, chatID, text, nil)
	}
	return r.reply(ctx, chatID, fmt.Sprintf("✅ Order #%d approved. Item #%d (%s) delivered to %s.",
		orderID, alloc.Item.ID, alloc.Item.Login, alloc.Order.CustomerName), nil)
}

func (r *Router) reject(ctx context.Context, chatID, orderID int64, reason string) error {
	order, err := r.facade.Reject(ctx, orderID, reason)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	return r.reply(ctx, chatID, fmt.Sprintf("❌ Order #%d rejected.", order.ID), nil)
}

func (r *Router) assign(ctx context.Context, chatID, orderID, itemID int64) error {
	if _, err := r.facade.Assign(ctx, orderID, itemID); err != nil {
		return r.fail(ctx, chatID, err)
	}
	return r.reply(ctx, chatID, fmt.Sprintf("📌 Item #%d reserved for order #%d. Approve the order to deliver it.", itemID, orderID), orderKeyboard(orderID))
}

func (r *Router) deleteItem(ctx context.Context, chatID, itemID int64, force bool) error {
	if err := r.facade.DeleteItem(ctx, itemID, force); err != nil {
		return r.fail(ctx, chatID, err)
	}
	return r.reply(ctx, chatID, fmt.Sprintf("🗑 Item #%d deleted.", itemID), nil)
}

func (r *Router) showStats(ctx context.Context, chatID int64) error {
	st, err := r.facade.Stats(ctx)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	text := fmt.Sprintf("📊 Statistics\n\nCustomers: %d\nStock: %d available of %d\nPending orders: %d\n\nSold: %d (%s)\nToday: %d (%s)",
		st.Customers, st.ItemsAvailable, st.ItemsTotal, st.PendingOrders,
		st.CompletedTotal, format.Money(st.RevenueTotal),
		st.CompletedToday, format.Money(st.RevenueToday))
	return r.reply(ctx, chatID, text, nil)
}

func (r *Router) sendReport(ctx context.Context, chatID int64) error {
	orders, err := r.facade.SalesReport(ctx)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	content, summary, err := salesCSV(orders)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	name := fmt.Sprintf("sales-%s.csv", r.now().Format("20060102"))
	if err := r.messenger.SendDocument(ctx, chatID, name, content, summary); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	return nil
}

// salesCSV renders finalized orders and a one-line summary.
func salesCSV(orders []model.Order) ([]byte, string, error) {
	var (
		buf       bytes.Buffer
		completed int
		cancelled int
		revenue   int64
	)
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"order_id", "created_at", "completed_at", "customer_id", "customer_name", "amount", "status", "notes"})
	for _, o := range orders {
		notes := ""
		if o.Notes != nil {
			notes = *o.Notes
		}
		switch o.Status {
		case model.OrderStatusCompleted:
			completed++
			revenue += o.Amount
		case model.OrderStatusCancelled:
			cancelled++
		}
		_ = w.Write([]string{
			strconv.FormatInt(o.ID, 10),
			format.Time(o.CreatedAt),
			format.OptionalTime(o.CompletedAt),
			strconv.FormatInt(o.CustomerID, 10),
			o.CustomerName,
			strconv.FormatInt(o.Amount, 10),
			string(o.Status),
			notes,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}
	summary := fmt.Sprintf("📈 Last 30 days: %d completed (%s), %d cancelled", completed, format.Money(revenue), cancelled)
	return buf.Bytes(), summary, nil
}

func (r *Router) showPaymentChannels(ctx context.Context, chatID, messageID int64) error {
	channels, err := r.facade.PaymentChannels(ctx, false)
	if err != nil {
		return r.fail(ctx, chatID, err)
	}
	var (
		b  strings.Builder
		kb model.Keyboard
	)
	b.WriteString("💳 Payment channels\n")
	if len(channels) == 0 {
		b.WriteString("\nNone configured.")
	}
	for _, ch := range channels {
		state := "active"
		toggle := "⏸ Disable"
		if !ch.Active {
			state = "disabled"
			toggle = "▶️ Enable"
		}
		fmt.Fprintf(&b, "\n#%d %s: %s (%s), %s", ch.ID, ch.Method, ch.AccountNumber, ch.Holder, state)
		kb = append(kb, []model.Button{
			button(fmt.Sprintf("%s %s", toggle, ch.Method), ActionPaymentToggle, ch.ID),
			button(fmt.Sprintf("🗑 %s", ch.Method), ActionPaymentDelete, ch.ID),
		})
	}
	kb = append(kb, []model.Button{button("➕ Add channel", ActionPaymentAdd, 0)})
	if messageID != 0 {
		if err := r.messenger.EditMessageText(ctx, chatID, messageID, b.String(), kb); err == nil {
			return nil
		}
	}
	return r.reply(ctx, chatID, b.String(), kb)
}

// notifyAdminsOfOrder hands the proof to every operator with decision buttons.
func (r *Router) notifyAdminsOfOrder(ctx context.Context, in conversation.Input, order *model.Order) {
	caption := fmt.Sprintf("🧾 New order\n%s\nStatus: %s", orderLine(*order), order.Status)
	for _, admin := range r.facade.AdminIDs() {
		var err error
		if in.Attachment != nil && in.Attachment.Kind == model.AttachmentPhoto {
			_, err = r.messenger.SendPhoto(ctx, admin, in.Attachment.FileID, caption, orderKeyboard(order.ID))
		} else {
			if err = r.messenger.ForwardMessage(ctx, admin, in.ChatID, in.MessageID); err == nil {
				_, err = r.messenger.SendMessage(ctx, admin, caption, orderKeyboard(order.ID))
			}
		}
		if err != nil {
			r.logger.Warn("failed to notify operator",
				slog.Int64("admin_id", admin),
				slog.Int64("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
