package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polkiloo/vendbot/internal/app"
	"github.com/polkiloo/vendbot/internal/config"
	"github.com/polkiloo/vendbot/internal/conversation"
	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/notify"
	"github.com/polkiloo/vendbot/internal/storage/memory"
	testhelpers "github.com/polkiloo/vendbot/internal/test"
	"github.com/polkiloo/vendbot/internal/usecase"
)

const (
	adminID    int64 = 1
	customerID int64 = 100
)

type fixture struct {
	t         *testing.T
	store     *testhelpers.MemoryStore
	messenger *testhelpers.MessengerStub
	router    *Router
	updateID  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testhelpers.NewMemoryStore()
	cfg := &config.Config{
		AdminIDs:        []int64{adminID},
		StoreName:       "Test Store",
		AdminUsername:   "store_admin",
		ConversationTTL: time.Minute,
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	settings := usecase.NewSettingsUseCase(store.Settings())
	uc := app.UseCases{
		Orders:     usecase.NewOrderUseCase(store.Orders(), store.Items(), store.Customers(), settings),
		Allocation: usecase.NewAllocationUseCase(store.Ledger(), logger),
		Inventory:  usecase.NewInventoryUseCase(store.Items()),
		Customers:  usecase.NewCustomerUseCase(store.Customers()),
		Payments:   usecase.NewPaymentChannelUseCase(store.PaymentChannels()),
		Settings:   settings,
		Auth:       usecase.NewOperatorAuthUseCase(cfg, testhelpers.HasherStub{}, testhelpers.StrategyStub{}),
	}
	messenger := &testhelpers.MessengerStub{}
	broadcaster := notify.NewBroadcaster(messenger, store.Customers(), 2, logger)
	facade := app.NewStoreFacade(uc, broadcaster, messenger, cfg, logger)
	machine := conversation.NewMachine(memory.NewConversationStore(), cfg, logger)
	return &fixture{
		t:         t,
		store:     store,
		messenger: messenger,
		router:    NewRouter(facade, machine, messenger, logger),
	}
}

func (f *fixture) send(from int64, text string) {
	f.t.Helper()
	f.updateID++
	err := f.router.HandleUpdate(context.Background(), model.Update{
		ID: f.updateID, ChatID: from, UserID: from, Username: "user", MessageID: f.updateID, Text: text,
	})
	require.NoError(f.t, err)
}

func (f *fixture) sendPhoto(from int64, fileID string) {
	f.t.Helper()
	f.updateID++
	err := f.router.HandleUpdate(context.Background(), model.Update{
		ID: f.updateID, ChatID: from, UserID: from, Username: "buyer", MessageID: f.updateID,
		Attachment: &model.Attachment{FileID: fileID, Kind: model.AttachmentPhoto, MimeType: "image/jpeg"},
	})
	require.NoError(f.t, err)
}

func (f *fixture) press(from int64, data string, messageID int64) {
	f.t.Helper()
	f.updateID++
	err := f.router.HandleUpdate(context.Background(), model.Update{
		ID: f.updateID, ChatID: from, UserID: from, MessageID: messageID,
		CallbackID: "cb", CallbackData: data,
	})
	require.NoError(f.t, err)
}

func (f *fixture) last(chatID int64) string {
	f.t.Helper()
	msg, ok := f.messenger.Last(chatID)
	require.True(f.t, ok, "no message sent to %d", chatID)
	return msg.Text
}

func (f *fixture) seedItem(line string) {
	f.t.Helper()
	f.send(adminID, "/additem")
	f.send(adminID, line)
	require.Contains(f.t, f.last(adminID), "added")
}

func (f *fixture) buy(from int64) {
	f.t.Helper()
	f.press(from, ActionBuyProof, 0)
	f.sendPhoto(from, testhelpers.RandomString(10))
}

func hasButton(kb model.Keyboard, data string) bool {
	for _, row := range kb {
		for _, b := range row {
			if b.Data == data {
				return true
			}
		}
	}
	return false
}

func TestStartRegistersCustomer(t *testing.T) {
	f := newFixture(t)
	f.send(customerID, "/start")

	c, err := f.store.Customers().Get(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, customerID, c.ID)

	msg, ok := f.messenger.Last(customerID)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Test Store")
	assert.Contains(t, msg.Text, "Rp 50.000")
	assert.True(t, hasButton(msg.Keyboard, ActionBuyProof))
	assert.False(t, hasButton(msg.Keyboard, ActionAdminMenu))

	f.send(adminID, "/start")
	msg, _ = f.messenger.Last(adminID)
	assert.True(t, hasButton(msg.Keyboard, ActionAdminMenu))
}

func TestPurchaseApprovalDeliversCredential(t *testing.T) {
	f := newFixture(t)
	f.seedItem("first@mail.com|pw-first|recovery code 1")
	f.seedItem("second@mail.com|pw-second")

	f.press(adminID, ActionPaymentAdd, 0)
	f.send(adminID, "bca|123456|Store Owner")
	assert.Contains(t, f.last(adminID), "BCA")

	f.send(customerID, "/buy")
	purchase, _ := f.messenger.Last(customerID)
	assert.Contains(t, purchase.Text, "BCA: 123456 (Store Owner)")
	assert.True(t, hasButton(purchase.Keyboard, ActionBuyProof))

	f.press(customerID, ActionBuyProof, 0)
	assert.Equal(t, promptPaymentProof, f.last(customerID))

	f.send(customerID, "I paid")
	assert.Contains(t, f.last(customerID), "❌")

	f.sendPhoto(customerID, "receipt-file")
	assert.Contains(t, f.last(customerID), "Order #1")

	require.Len(t, f.messenger.Photos, 1)
	proof := f.messenger.Photos[0]
	assert.Equal(t, adminID, proof.ChatID)
	assert.True(t, hasButton(proof.Keyboard, "order:approve:1"))
	assert.True(t, hasButton(proof.Keyboard, "order:reject:1"))

	f.press(adminID, "order:approve:1", proof.MessageID)
	delivered := f.last(customerID)
	assert.Contains(t, delivered, "Login: first@mail.com")
	assert.Contains(t, delivered, "Password: pw-first")
	assert.Contains(t, delivered, "Notes: recovery code 1")
	assert.Contains(t, f.last(adminID), "approved")

	item, ok := f.store.Item(1)
	require.True(t, ok)
	assert.True(t, item.Sold)
	order, _ := f.store.Order(1)
	assert.Equal(t, model.OrderStatusCompleted, order.Status)

	f.press(adminID, "order:approve:1", proof.MessageID)
	assert.Contains(t, f.last(adminID), "already completed")
	second, _ := f.store.Item(2)
	assert.False(t, second.Sold)
}

func TestSecondOrderHitsPurchaseLimit(t *testing.T) {
	f := newFixture(t)
	f.seedItem("a@mail.com|pw")
	f.seedItem("b@mail.com|pw")

	f.buy(customerID)
	f.buy(customerID)
	assert.Contains(t, f.last(customerID), "already have an order")
}

func TestOutOfStockRefusesProof(t *testing.T) {
	f := newFixture(t)
	f.send(customerID, "/buy")
	assert.Contains(t, f.last(customerID), "out of stock")

	f.buy(customerID)
	assert.Contains(t, f.last(customerID), "out of stock")
}

func TestRejectNotifiesCustomer(t *testing.T) {
	f := newFixture(t)
	f.seedItem("a@mail.com|pw")
	f.buy(customerID)

	f.send(adminID, "/reject 1 blurry photo")
	assert.Contains(t, f.last(adminID), "rejected")
	assert.Contains(t, f.last(customerID), "blurry photo")

	order, _ := f.store.Order(1)
	assert.Equal(t, model.OrderStatusCancelled, order.Status)
	item, _ := f.store.Item(1)
	assert.False(t, item.Sold)

	f.press(adminID, "order:reject:1", 0)
	assert.Contains(t, f.last(adminID), "already cancelled")
}

func TestAssignThenApproveDeliversPinnedItem(t *testing.T) {
	f := newFixture(t)
	f.seedItem("a@mail.com|pw-a")
	f.seedItem("b@mail.com|pw-b")
	f.buy(customerID)

	f.send(adminID, "/assign 1 2")
	msg, _ := f.messenger.Last(adminID)
	assert.Contains(t, msg.Text, "reserved")
	assert.True(t, hasButton(msg.Keyboard, "order:approve:1"))

	f.send(adminID, "/approve 1")
	assert.Contains(t, f.last(customerID), "Login: b@mail.com")

	f.send(adminID, "/assign 1")
	assert.Contains(t, f.last(adminID), "usage: /assign")
}

func TestApproveReportsFailedDelivery(t *testing.T) {
	f := newFixture(t)
	f.seedItem("a@mail.com|pw-a")
	f.buy(customerID)

	f.messenger.SendFn = func(_ context.Context, chatID int64, _ string) error {
		if chatID == customerID {
			return &domainErrors.TransportError{ChatID: chatID, Permanent: true, Err: errors.New("blocked")}
		}
		return nil
	}
	f.send(adminID, "/approve 1")

	text := f.last(adminID)
	assert.Contains(t, text, "delivery to 100 failed")
	assert.Contains(t, text, "Password: pw-a")
	order, _ := f.store.Order(1)
	assert.Equal(t, model.OrderStatusCompleted, order.Status)
}

func TestOperatorCommandsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	f.send(customerID, "/approve 1")
	assert.Contains(t, f.last(customerID), "operators only")

	f.press(customerID, "order:approve:1", 0)
	assert.Contains(t, f.last(customerID), "operators only")
}

func TestMaintenanceGate(t *testing.T) {
	f := newFixture(t)
	f.send(adminID, "/maintenance")
	assert.Contains(t, f.last(adminID), "ON")

	f.send(customerID, "/buy")
	assert.Contains(t, f.last(customerID), "maintenance")
	f.press(customerID, ActionBuyProof, 0)
	assert.Contains(t, f.last(customerID), "maintenance")

	f.send(customerID, "/help")
	assert.Contains(t, f.last(customerID), "How to buy")
	assert.NotContains(t, f.last(customerID), "Operator commands")

	f.send(adminID, "/price")
	assert.Contains(t, f.last(adminID), "Rp 50.000")

	f.press(adminID, ActionMaintenance, 42)
	require.Len(t, f.messenger.Edits, 1)
	assert.Contains(t, f.messenger.Edits[0].Text, "OFF")
	f.send(customerID, "/price")
	assert.Contains(t, f.last(customerID), "Rp 50.000")
}

func TestConversationCancelAndRetry(t *testing.T) {
	f := newFixture(t)
	f.send(adminID, "/setprice")
	assert.Equal(t, promptSetPrice, f.last(adminID))

	f.send(adminID, "cheap")
	retry := f.last(adminID)
	assert.Contains(t, retry, "❌")
	assert.Contains(t, retry, promptSetPrice)

	f.send(adminID, "75.000")
	assert.Contains(t, f.last(adminID), "Rp 75.000")
	f.send(customerID, "/price")
	assert.Contains(t, f.last(customerID), "Rp 75.000")

	f.send(adminID, "/setprice")
	f.send(adminID, "/cancel")
	assert.Equal(t, "Cancelled.", f.last(adminID))
	f.send(adminID, "1000")
	assert.Contains(t, f.last(adminID), "Unknown command")
	f.send(adminID, "/cancel")
	assert.Equal(t, "Nothing to cancel.", f.last(adminID))
}

func TestDuplicateItemIsReprompted(t *testing.T) {
	f := newFixture(t)
	f.seedItem("a@mail.com|pw")
	f.send(adminID, "/additem")
	f.send(adminID, "a@mail.com|other")
	assert.Contains(t, f.last(adminID), "already in stock")
	f.send(adminID, "c@mail.com|pw")
	assert.Contains(t, f.last(adminID), "Item #2")
}

func TestDeleteItemFlow(t *testing.T) {
	f := newFixture(t)
	f.seedItem("a@mail.com|pw")

	f.send(adminID, "/delitem")
	f.send(adminID, "9")
	assert.Contains(t, f.last(adminID), "no item #9")
	f.send(adminID, "1")
	msg, _ := f.messenger.Last(adminID)
	assert.Contains(t, msg.Text, "a@mail.com")
	assert.True(t, hasButton(msg.Keyboard, "item:delete:ok:1"))

	f.send(adminID, "maybe")
	assert.Contains(t, f.last(adminID), "reply YES or FORCE")
	f.send(adminID, "yes")
	assert.Contains(t, f.last(adminID), "deleted")
	_, ok := f.store.Item(1)
	assert.False(t, ok)
}

func TestDeleteSoldItemNeedsForce(t *testing.T) {
	f := newFixture(t)
	f.seedItem("a@mail.com|pw")
	f.buy(customerID)
	f.send(adminID, "/approve 1")

	f.send(adminID, "/delitem")
	f.send(adminID, "1")
	f.send(adminID, "yes")
	assert.Contains(t, f.last(adminID), "FORCE")
	f.send(adminID, "force")
	assert.Contains(t, f.last(adminID), "deleted")

	order, _ := f.store.Order(1)
	assert.Equal(t, model.OrderStatusCompleted, order.Status)
	assert.Nil(t, order.ItemID)
}

func TestDeleteItemButton(t *testing.T) {
	f := newFixture(t)
	f.seedItem("a@mail.com|pw")
	f.send(adminID, "/delitem")
	f.send(adminID, "1")
	f.press(adminID, "item:delete:ok:1", 0)
	assert.Contains(t, f.last(adminID), "deleted")

	f.send(adminID, "yes")
	assert.Contains(t, f.last(adminID), "Unknown command")
}

func TestBroadcastCountsAndBlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []int64{200, 300, 400} {
		_, err := f.store.Customers().Register(ctx, id, "c")
		require.NoError(t, err)
	}
	var attempts int32
	f.messenger.SendFn = func(_ context.Context, chatID int64, _ string) error {
		switch chatID {
		case 300:
			atomic.AddInt32(&attempts, 1)
			return &domainErrors.TransportError{ChatID: chatID, Permanent: true, Err: errors.New("bot was blocked")}
		case 400:
			return &domainErrors.TransportError{ChatID: chatID, Err: errors.New("timeout")}
		}
		return nil
	}

	f.send(adminID, "/broadcast")
	assert.Equal(t, promptBroadcast, f.last(adminID))
	f.send(adminID, "Big sale today")
	assert.Equal(t, "📢 Broadcast finished: 1 sent, 2 failed, 1 blocked.", f.last(adminID))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))

	blocked, err := f.store.Customers().Get(ctx, 300)
	require.NoError(t, err)
	assert.True(t, blocked.Blocked)
	flaky, _ := f.store.Customers().Get(ctx, 400)
	assert.False(t, flaky.Blocked)
	assert.Equal(t, []string{"Big sale today"}, f.messenger.To(200))
}

func TestBroadcastCancelToken(t *testing.T) {
	f := newFixture(t)
	f.press(adminID, ActionBroadcast, 0)
	f.send(adminID, "/cancel_broadcast")
	assert.Equal(t, "Cancelled.", f.last(adminID))
}

func TestPendingStatsAndStock(t *testing.T) {
	f := newFixture(t)
	f.seedItem("a@mail.com|pw")
	f.seedItem("b@mail.com|pw")
	f.buy(customerID)

	f.send(adminID, "/pending")
	msg, _ := f.messenger.Last(adminID)
	assert.Contains(t, msg.Text, "#1")
	assert.True(t, hasButton(msg.Keyboard, "order:approve:1"))

	f.send(adminID, "/approve 1")
	f.press(adminID, ActionPendingOrders, 0)
	assert.Equal(t, "✅ No pending orders.", f.last(adminID))

	f.press(adminID, ActionStats, 0)
	stats := f.last(adminID)
	assert.Contains(t, stats, "Customers: 1")
	assert.Contains(t, stats, "Stock: 1 available of 2")
	assert.Contains(t, stats, "Sold: 1 (Rp 50.000)")

	f.send(adminID, "/stock")
	assert.Contains(t, f.last(adminID), "1 available, 1 sold, 2 total")
	assert.Contains(t, f.last(adminID), "b@mail.com")
	f.send(customerID, "/stock")
	assert.Equal(t, "📦 In stock: 1", f.last(customerID))
}

func TestReportIsSentAsCSV(t *testing.T) {
	f := newFixture(t)
	f.router.now = func() time.Time { return time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC) }
	f.send(adminID, "/report")

	require.Len(t, f.messenger.Documents, 1)
	doc := f.messenger.Documents[0]
	assert.Equal(t, "sales-20240506.csv", doc.Filename)
	assert.True(t, strings.HasPrefix(string(doc.Content), "order_id,created_at,completed_at"))
	assert.Contains(t, doc.Caption, "0 completed")
}

func TestPaymentChannelButtonsEditList(t *testing.T) {
	f := newFixture(t)
	f.send(adminID, "/payments")
	assert.Contains(t, f.last(adminID), "None configured")

	f.press(adminID, ActionPaymentAdd, 0)
	f.send(adminID, "ovo|0812|Owner")
	f.press(adminID, "pm:toggle:1", 77)
	require.Len(t, f.messenger.Edits, 1)
	assert.Equal(t, int64(77), f.messenger.Edits[0].MessageID)
	assert.Contains(t, f.messenger.Edits[0].Text, "disabled")

	f.send(customerID, "/start")
	f.seedItem("a@mail.com|pw")
	f.send(customerID, "/buy")
	assert.Contains(t, f.last(customerID), "No payment channel")
	assert.Contains(t, f.last(customerID), "@store_admin")

	f.press(adminID, "pm:delete:1", 77)
	require.Len(t, f.messenger.Edits, 2)
	assert.Contains(t, f.messenger.Edits[1].Text, "None configured")
}

func TestUnroutableUpdates(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.router.HandleUpdate(context.Background(), model.Update{ID: 1}))

	f.press(customerID, "garbage", 0)
	_, sent := f.messenger.Last(customerID)
	assert.False(t, sent)
	assert.Equal(t, []string{"cb"}, f.messenger.Answers)

	f.sendPhoto(customerID, "stray")
	assert.Contains(t, f.last(customerID), "press "+LabelBuy)
}

func TestHelpListsOperatorCommands(t *testing.T) {
	f := newFixture(t)
	f.send(adminID, LabelHelp)
	assert.Contains(t, f.last(adminID), "Operator commands")

	f.send(adminID, LabelAdmin)
	msg, _ := f.messenger.Last(adminID)
	assert.True(t, hasButton(msg.Keyboard, ActionMaintenance))
	assert.True(t, hasButton(msg.Keyboard, ActionSalesReport))
}

func TestStorageFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.store.Err = errors.New("disk on fire")
	err := f.router.HandleUpdate(context.Background(), model.Update{ID: 1, ChatID: customerID, UserID: customerID, Text: "/price"})
	require.Error(t, err)
	assert.Contains(t, f.last(customerID), "Something went wrong")
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		err      error
		contains string
		expected bool
	}{
		{domainErrors.Invalid("price", "bad"), "price: bad", true},
		{&domainErrors.AlreadyFinalizedError{OrderID: 3, Status: "completed"}, "#3 is already completed", true},
		{domainErrors.ErrStockExhausted, "out of stock", true},
		{domainErrors.ErrAllocationConflict, "another approval", true},
		{domainErrors.ErrNotFound, "Not found", true},
		{errors.New("boom"), "Something went wrong", false},
	}
	for _, tc := range cases {
		text, expected := describe(tc.err)
		assert.Contains(t, text, tc.contains)
		assert.Equal(t, tc.expected, expected)
	}
}

func TestSalesCSVSummary(t *testing.T) {
	done := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	note := "fake, receipt"
	content, summary, err := salesCSV([]model.Order{
		{ID: 1, CustomerID: 5, CustomerName: "a", Amount: 50000, Status: model.OrderStatusCompleted, CreatedAt: done, CompletedAt: &done},
		{ID: 2, CustomerID: 6, CustomerName: "b", Amount: 50000, Status: model.OrderStatusCancelled, CreatedAt: done, Notes: &note},
	})
	require.NoError(t, err)
	assert.Equal(t, "📈 Last 30 days: 1 completed (Rp 50.000), 1 cancelled", summary)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1,2024-02-01 10:00,2024-02-01 10:00,5,a,50000,completed,", lines[1])
	assert.Equal(t, `2,2024-02-01 10:00,-,6,b,50000,cancelled,"fake, receipt"`, lines[2])
}
