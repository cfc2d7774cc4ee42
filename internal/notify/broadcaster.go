// Package notify delivers messages to many chats at once.
package notify

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/polkiloo/vendbot/internal/config"
	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
)

const defaultConcurrency = 8

// Sender sends one chat message and returns its id.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard model.Keyboard) (int64, error)
}

// Blocker flags recipients that can no longer be reached.
type Blocker interface {
	MarkBlocked(ctx context.Context, ids []int64) (int, error)
}

// Report summarizes a broadcast. Sent+Failed equals the number of recipients.
type Report struct {
	Sent    int
	Failed  int
	Blocked int
}

// Broadcaster fans a message out with bounded concurrency.
type Broadcaster struct {
	sender  Sender
	blocker Blocker
	limit   int
	logger  *slog.Logger
}

// NewBroadcaster constructs Broadcaster; limit <= 0 uses a default.
func NewBroadcaster(sender Sender, blocker Blocker, limit int, logger *slog.Logger) *Broadcaster {
	if limit <= 0 {
		limit = defaultConcurrency
	}
	return &Broadcaster{sender: sender, blocker: blocker, limit: limit, logger: logger}
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeBlocked
)

// Broadcast sends text to every recipient. A failed send never stops the
// others. Recipients rejected permanently are marked blocked in one batch
// after every send has finished.
func (b *Broadcaster) Broadcast(ctx context.Context, text string, recipients []int64) Report {
	results := make([]outcome, len(recipients))

	var g errgroup.Group
	g.SetLimit(b.limit)
	for i, chatID := range recipients {
		i, chatID := i, chatID
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = outcomeFailed
				return nil
			}
			if _, err := b.sender.SendMessage(ctx, chatID, text, nil); err != nil {
				if domainErrors.IsPermanentTransport(err) {
					results[i] = outcomeBlocked
				} else {
					results[i] = outcomeFailed
				}
				b.logger.Debug("broadcast send failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
				return nil
			}
			results[i] = outcomeSent
			return nil
		})
	}
	_ = g.Wait()

	var (
		report  Report
		blocked []int64
	)
	for i, r := range results {
		switch r {
		case outcomeSent:
			report.Sent++
		case outcomeBlocked:
			report.Failed++
			blocked = append(blocked, recipients[i])
		default:
			report.Failed++
		}
	}

	if len(blocked) > 0 {
		n, err := b.blocker.MarkBlocked(context.WithoutCancel(ctx), blocked)
		if err != nil {
			b.logger.Error("failed to mark blocked recipients", slog.Int("count", len(blocked)), slog.String("error", err.Error()))
		}
		report.Blocked = n
	}

	b.logger.Info("broadcast finished",
		slog.Int("recipients", len(recipients)),
		slog.Int("sent", report.Sent),
		slog.Int("failed", report.Failed),
		slog.Int("blocked", report.Blocked),
	)
	return report
}

// Notify sends a single message and logs a failure instead of returning it.
func (b *Broadcaster) Notify(ctx context.Context, chatID int64, text string) bool {
	if _, err := b.sender.SendMessage(ctx, chatID, text, nil); err != nil {
		b.logger.Warn("notification failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
		return false
	}
	return true
}

// NotifyAdmins sends text to every configured admin chat.
func (b *Broadcaster) NotifyAdmins(ctx context.Context, cfg *config.Config, text string) {
	for _, id := range cfg.AdminIDs {
		b.Notify(ctx, id, text)
	}
}
