// Package conversation implements per-chat multi-turn input collection.
//
// A chat has at most one active conversation. Each step has a prompt and a
// handler; the handler either completes the exchange, moves it to another
// step, or rejects the input with a validation error so the same step is
// asked again.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/polkiloo/vendbot/internal/config"
	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/domain/repository"
)

// Step names the input a conversation is waiting for.
type Step string

const (
	StepAddItem           Step = "add_item"
	StepDeleteItem        Step = "delete_item"
	StepDeleteItemConfirm Step = "delete_item_confirm"
	StepSetPrice          Step = "set_price"
	StepAddPaymentChannel Step = "add_payment_channel"
	StepBroadcast         Step = "broadcast"
	StepPaymentProof      Step = "payment_proof"
)

const (
	CancelToken          = "/cancel"
	CancelBroadcastToken = "/cancel_broadcast"
)

const cancelledReply = "Cancelled."

// Input is one inbound message routed to a conversation.
type Input struct {
	ChatID     int64
	UserID     int64
	Username   string
	MessageID  int64
	Text       string
	Attachment *model.Attachment
}

// Transition is a handler's verdict. An empty Next completes the conversation.
type Transition struct {
	Next     Step
	Data     map[string]string
	Reply    string
	Keyboard model.Keyboard
}

// Handler consumes input for a step.
type Handler func(ctx context.Context, state model.Conversation, in Input) (Transition, error)

// Result describes what Dispatch did with an input.
type Result struct {
	Handled   bool
	Cancelled bool
	Step      Step
	Reply     string
	Keyboard  model.Keyboard
}

type stepSpec struct {
	prompt  string
	handler Handler
}

// Machine routes chat input to step handlers.
type Machine struct {
	store  repository.ConversationRepository
	steps  map[Step]stepSpec
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewMachine creates a Machine with no steps registered.
func NewMachine(store repository.ConversationRepository, cfg *config.Config, logger *slog.Logger) *Machine {
	return &Machine{
		store:  store,
		steps:  make(map[Step]stepSpec),
		ttl:    cfg.ConversationTTL,
		now:    time.Now,
		logger: logger,
	}
}

// Handle registers the prompt and handler for step.
func (m *Machine) Handle(step Step, prompt string, h Handler) {
	m.steps[step] = stepSpec{prompt: prompt, handler: h}
}

// Prompt returns the text asked when step starts.
func (m *Machine) Prompt(step Step) string {
	return m.steps[step].prompt
}

func (m *Machine) expiry(now time.Time) time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(m.ttl)
}

// Begin starts step for chatID, replacing any conversation already in progress.
func (m *Machine) Begin(ctx context.Context, chatID int64, step Step, data map[string]string) (string, error) {
	def, ok := m.steps[step]
	if !ok {
		return "", fmt.Errorf("conversation: unknown step %q", step)
	}
	now := m.now()
	c := model.Conversation{
		ChatID:    chatID,
		Step:      string(step),
		Data:      data,
		CreatedAt: now,
		ExpiresAt: m.expiry(now),
	}
	if err := m.store.Save(ctx, c); err != nil {
		return "", err
	}
	return def.prompt, nil
}

// Active returns the live conversation for chatID, or nil.
func (m *Machine) Active(ctx context.Context, chatID int64) (*model.Conversation, error) {
	c, err := m.store.Load(ctx, chatID)
	if errors.Is(err, domainErrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if c.Expired(m.now()) {
		return nil, m.store.Delete(ctx, chatID)
	}
	return c, nil
}

// Cancel drops any conversation for chatID.
func (m *Machine) Cancel(ctx context.Context, chatID int64) error {
	return m.store.Delete(ctx, chatID)
}

func isCancel(step Step, text string) bool {
	if text == CancelToken {
		return true
	}
	return step == StepBroadcast && text == CancelBroadcastToken
}

// Dispatch feeds in to the chat's conversation. Without a live conversation
// the input is left unhandled for the command router.
func (m *Machine) Dispatch(ctx context.Context, in Input) (Result, error) {
	c, err := m.Active(ctx, in.ChatID)
	if err != nil || c == nil {
		return Result{}, err
	}
	step := Step(c.Step)

	if isCancel(step, in.Text) {
		if err := m.store.Delete(ctx, in.ChatID); err != nil {
			return Result{}, err
		}
		return Result{Handled: true, Cancelled: true, Step: step, Reply: cancelledReply}, nil
	}

	def, ok := m.steps[step]
	if !ok {
		_ = m.store.Delete(ctx, in.ChatID)
		return Result{Handled: true}, fmt.Errorf("conversation: no handler for step %q", step)
	}

	tr, err := def.handler(ctx, *c, in)
	if err != nil {
		var vErr *domainErrors.ValidationError
		if errors.As(err, &vErr) {
			c.Attempts++
			c.ExpiresAt = m.expiry(m.now())
			if err := m.store.Save(ctx, *c); err != nil {
				return Result{}, err
			}
			m.logger.Debug("conversation input rejected",
				slog.Int64("chat_id", in.ChatID),
				slog.String("step", c.Step),
				slog.Int("attempts", c.Attempts),
			)
			return Result{
				Handled: true,
				Step:    step,
				Reply:   fmt.Sprintf("❌ %s\n%s\nSend %s to stop.", vErr.Error(), def.prompt, cancelTokenFor(step)),
			}, nil
		}
		if delErr := m.store.Delete(ctx, in.ChatID); delErr != nil {
			m.logger.Warn("failed to clear conversation", slog.String("error", delErr.Error()))
		}
		return Result{Handled: true, Step: step}, err
	}

	if tr.Next == "" {
		if err := m.store.Delete(ctx, in.ChatID); err != nil {
			return Result{}, err
		}
		return Result{Handled: true, Reply: tr.Reply, Keyboard: tr.Keyboard}, nil
	}

	next, ok := m.steps[tr.Next]
	if !ok {
		_ = m.store.Delete(ctx, in.ChatID)
		return Result{Handled: true}, fmt.Errorf("conversation: unknown step %q", tr.Next)
	}
	now := m.now()
	data := tr.Data
	if data == nil {
		data = c.Data
	}
	if err := m.store.Save(ctx, model.Conversation{
		ChatID:    in.ChatID,
		Step:      string(tr.Next),
		Data:      data,
		CreatedAt: c.CreatedAt,
		ExpiresAt: m.expiry(now),
	}); err != nil {
		return Result{}, err
	}
	reply := tr.Reply
	if reply == "" {
		reply = next.prompt
	}
	return Result{Handled: true, Step: tr.Next, Reply: reply, Keyboard: tr.Keyboard}, nil
}

func cancelTokenFor(step Step) string {
	if step == StepBroadcast {
		return CancelBroadcastToken
	}
	return CancelToken
}
