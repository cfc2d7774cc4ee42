package test

import (
	"context"
	"sync"
	"time"

	"github.com/polkiloo/vendbot/internal/domain/model"
)

// SentMessage records one outbound chat message.
type SentMessage struct {
	ChatID    int64
	MessageID int64
	Text      string
	Keyboard  model.Keyboard
}

// SentDocument records one uploaded file.
type SentDocument struct {
	ChatID   int64
	Filename string
	Content  []byte
	Caption  string
}

// ForwardCall records one forwarded message.
type ForwardCall struct {
	To, From, MessageID int64
}

// MessengerStub captures everything the bot would send to chats.
type MessengerStub struct {
	SendFn func(ctx context.Context, chatID int64, text string) error

	mu        sync.Mutex
	nextID    int64
	Messages  []SentMessage
	Edits     []SentMessage
	Photos    []SentMessage
	Documents []SentDocument
	Forwards  []ForwardCall
	Answers   []string
}

func (m *MessengerStub) id() int64 {
	m.nextID++
	return m.nextID
}

// SendMessage records the message unless SendFn fails it.
func (m *MessengerStub) SendMessage(ctx context.Context, chatID int64, text string, kb model.Keyboard) (int64, error) {
	if m.SendFn != nil {
		if err := m.SendFn(ctx, chatID, text); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.Messages = append(m.Messages, SentMessage{ChatID: chatID, MessageID: id, Text: text, Keyboard: kb})
	return id, nil
}

func (m *MessengerStub) EditMessageText(_ context.Context, chatID, messageID int64, text string, kb model.Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edits = append(m.Edits, SentMessage{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb})
	return nil
}

func (m *MessengerStub) AnswerCallback(_ context.Context, callbackID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Answers = append(m.Answers, callbackID)
	return nil
}

func (m *MessengerStub) ForwardMessage(_ context.Context, to, from, messageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Forwards = append(m.Forwards, ForwardCall{To: to, From: from, MessageID: messageID})
	return nil
}

func (m *MessengerStub) SendPhoto(_ context.Context, chatID int64, fileID, caption string, kb model.Keyboard) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.Photos = append(m.Photos, SentMessage{ChatID: chatID, MessageID: id, Text: caption, Keyboard: kb})
	return id, nil
}

func (m *MessengerStub) SendDocument(_ context.Context, chatID int64, filename string, content []byte, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Documents = append(m.Documents, SentDocument{ChatID: chatID, Filename: filename, Content: content, Caption: caption})
	return nil
}

// To returns the texts sent to chatID in order.
func (m *MessengerStub) To(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.Messages {
		if msg.ChatID == chatID {
			out = append(out, msg.Text)
		}
	}
	return out
}

// Last returns the last message sent to chatID.
func (m *MessengerStub) Last(chatID int64) (SentMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Messages) - 1; i >= 0; i-- {
		if m.Messages[i].ChatID == chatID {
			return m.Messages[i], true
		}
	}
	return SentMessage{}, false
}

// Reset forgets recorded traffic.
func (m *MessengerStub) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages, m.Edits, m.Photos, m.Documents, m.Forwards, m.Answers = nil, nil, nil, nil, nil, nil
}

// UpdateHandlerStub records handled updates.
type UpdateHandlerStub struct {
	HandleFn func(ctx context.Context, u model.Update) error

	mu      sync.Mutex
	Handled []model.Update
}

func (h *UpdateHandlerStub) HandleUpdate(ctx context.Context, u model.Update) error {
	h.mu.Lock()
	h.Handled = append(h.Handled, u)
	h.mu.Unlock()
	if h.HandleFn != nil {
		return h.HandleFn(ctx, u)
	}
	return nil
}

// Snapshot returns a copy of the handled updates.
func (h *UpdateHandlerStub) Snapshot() []model.Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.Update(nil), h.Handled...)
}

// UpdateSourceStub serves scripted polling results, then blocks like an
// idle long poll until the context ends.
type UpdateSourceStub struct {
	Errs    []error
	Batches [][]model.Update

	mu      sync.Mutex
	Offsets []int64
}

func (s *UpdateSourceStub) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]model.Update, error) {
	s.mu.Lock()
	s.Offsets = append(s.Offsets, offset)
	if len(s.Errs) > 0 {
		err := s.Errs[0]
		s.Errs = s.Errs[1:]
		s.mu.Unlock()
		return nil, err
	}
	if len(s.Batches) > 0 {
		batch := s.Batches[0]
		s.Batches = s.Batches[1:]
		s.mu.Unlock()
		return batch, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

// Calls returns the offsets GetUpdates was asked for.
func (s *UpdateSourceStub) Calls() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.Offsets...)
}

// OperatorFacadeStub drives the operator HTTP API in tests.
type OperatorFacadeStub struct {
	LoginFn          func(ctx context.Context, operatorID int64, password string) (string, error)
	ParseFn          func(token string) (int64, error)
	PendingFn        func(ctx context.Context, limit int) ([]model.Order, error)
	OrderFn          func(ctx context.Context, id int64) (*model.Order, error)
	ApproveFn        func(ctx context.Context, id int64) (*model.Fulfillment, error)
	RejectFn         func(ctx context.Context, id int64, reason string) (*model.Order, error)
	AssignFn         func(ctx context.Context, orderID, itemID int64) (*model.Order, error)
	StatsFn          func(ctx context.Context) (model.SalesStats, error)
	AvailableItemsFn func(ctx context.Context, limit int) ([]model.Item, error)
	AddItemFn        func(ctx context.Context, raw string) (*model.Item, error)
	DeleteItemFn     func(ctx context.Context, id int64, force bool) error
}

func (s OperatorFacadeStub) Login(ctx context.Context, operatorID int64, password string) (string, error) {
	if s.LoginFn != nil {
		return s.LoginFn(ctx, operatorID, password)
	}
	return "token", nil
}

func (s OperatorFacadeStub) ParseToken(token string) (int64, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	return 1, nil
}

func (s OperatorFacadeStub) Pending(ctx context.Context, limit int) ([]model.Order, error) {
	if s.PendingFn != nil {
		return s.PendingFn(ctx, limit)
	}
	return nil, nil
}

func (s OperatorFacadeStub) Order(ctx context.Context, id int64) (*model.Order, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, id)
	}
	return &model.Order{ID: id, Status: model.OrderStatusPending}, nil
}

func (s OperatorFacadeStub) Approve(ctx context.Context, id int64) (*model.Fulfillment, error) {
	if s.ApproveFn != nil {
		return s.ApproveFn(ctx, id)
	}
	return &model.Fulfillment{
		Allocation: &model.Allocation{Order: model.Order{ID: id, Status: model.OrderStatusCompleted}},
		Delivered:  true,
	}, nil
}

func (s OperatorFacadeStub) Reject(ctx context.Context, id int64, reason string) (*model.Order, error) {
	if s.RejectFn != nil {
		return s.RejectFn(ctx, id, reason)
	}
	return &model.Order{ID: id, Status: model.OrderStatusCancelled, Notes: &reason}, nil
}

func (s OperatorFacadeStub) Assign(ctx context.Context, orderID, itemID int64) (*model.Order, error) {
	if s.AssignFn != nil {
		return s.AssignFn(ctx, orderID, itemID)
	}
	return &model.Order{ID: orderID, ItemID: &itemID, Status: model.OrderStatusPending}, nil
}

func (s OperatorFacadeStub) Stats(ctx context.Context) (model.SalesStats, error) {
	if s.StatsFn != nil {
		return s.StatsFn(ctx)
	}
	return model.SalesStats{}, nil
}

func (s OperatorFacadeStub) AvailableItems(ctx context.Context, limit int) ([]model.Item, error) {
	if s.AvailableItemsFn != nil {
		return s.AvailableItemsFn(ctx, limit)
	}
	return nil, nil
}

func (s OperatorFacadeStub) AddItem(ctx context.Context, raw string) (*model.Item, error) {
	if s.AddItemFn != nil {
		return s.AddItemFn(ctx, raw)
	}
	return &model.Item{ID: 1}, nil
}

func (s OperatorFacadeStub) DeleteItem(ctx context.Context, id int64, force bool) error {
	if s.DeleteItemFn != nil {
		return s.DeleteItemFn(ctx, id, force)
	}
	return nil
}

// UpdateQueueStub records webhook updates. A non-nil Err refuses them.
type UpdateQueueStub struct {
	Err error

	mu      sync.Mutex
	Updates []model.Update
}

func (q *UpdateQueueStub) Enqueue(_ context.Context, u model.Update) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.Updates = append(q.Updates, u)
	return nil
}
