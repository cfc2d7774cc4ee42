package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/domain/repository"
)

const (
	queueSize      = 64
	pollErrorDelay = time.Second
)

// ErrNotRunning is returned by Enqueue outside Start and Stop.
var ErrNotRunning = errors.New("update dispatcher is not running")

// Handler processes one update.
type Handler interface {
	HandleUpdate(ctx context.Context, u model.Update) error
}

// Source long-polls the transport for updates.
type Source interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]model.Update, error)
}

// UpdateDispatcher fans updates out to a fixed pool of workers. Updates of one
// chat always land on the same worker, so a chat is served in arrival order
// while different chats proceed in parallel.
type UpdateDispatcher struct {
	handler     Handler
	source      Source
	dedupe      repository.UpdateDeduplicator
	workers     int
	pollTimeout time.Duration
	logger      *slog.Logger

	queues  []chan model.Update
	wg      sync.WaitGroup
	pollWG  sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.RWMutex
	running bool
	offset  int64
}

// NewUpdateDispatcher constructs a dispatcher. A nil source means updates
// arrive through Enqueue only (webhook mode).
func NewUpdateDispatcher(handler Handler, source Source, dedupe repository.UpdateDeduplicator, workers int, pollTimeout time.Duration, logger *slog.Logger) *UpdateDispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &UpdateDispatcher{
		handler:     handler,
		source:      source,
		dedupe:      dedupe,
		workers:     workers,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Start launches the workers and, when a source is configured, the poll loop.
func (d *UpdateDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}

	base := context.WithoutCancel(ctx)
	runCtx, cancel := context.WithCancel(base)
	d.cancel = cancel
	d.queues = make([]chan model.Update, d.workers)
	for i := range d.queues {
		d.queues[i] = make(chan model.Update, queueSize)
		d.wg.Add(1)
		go d.worker(base, d.queues[i])
	}
	d.running = true

	if d.source != nil {
		d.pollWG.Add(1)
		go d.poll(runCtx)
	}
}

// Stop ends polling, then lets every worker finish the updates already queued.
func (d *UpdateDispatcher) Stop() {
	d.mu.RLock()
	cancel := d.cancel
	d.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	d.pollWG.Wait()

	d.mu.Lock()
	if d.running {
		d.running = false
		d.cancel = nil
		for _, q := range d.queues {
			close(q)
		}
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Enqueue routes u to its chat's worker. Updates seen before are dropped and
// count as accepted. A non-nil error means u was not queued and its id is not
// remembered, so the sender may deliver it again.
func (d *UpdateDispatcher) Enqueue(ctx context.Context, u model.Update) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		return ErrNotRunning
	}

	marked := false
	if d.dedupe != nil {
		first, err := d.dedupe.FirstSeen(ctx, u.ID)
		switch {
		case err != nil:
			d.logger.Warn("update dedupe unavailable", slog.Int64("update_id", u.ID), slog.String("error", err.Error()))
		case !first:
			d.logger.Debug("duplicate update dropped", slog.Int64("update_id", u.ID))
			return nil
		default:
			marked = true
		}
	}

	select {
	case d.queues[d.route(u.ChatID)] <- u:
		return nil
	case <-ctx.Done():
		if marked {
			if err := d.dedupe.Forget(context.WithoutCancel(ctx), u.ID); err != nil {
				d.logger.Warn("update dedupe release failed", slog.Int64("update_id", u.ID), slog.String("error", err.Error()))
			}
		}
		return ctx.Err()
	}
}

func (d *UpdateDispatcher) route(chatID int64) int {
	return int(uint64(chatID) % uint64(len(d.queues)))
}

// Offset returns the next update id the poll loop will ask for.
func (d *UpdateDispatcher) Offset() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.offset
}

func (d *UpdateDispatcher) poll(ctx context.Context) {
	defer d.pollWG.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := d.source.GetUpdates(ctx, d.Offset(), d.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := pollErrorDelay
			var te *domainErrors.TransportError
			if errors.As(err, &te) && te.RetryAfter > 0 {
				wait = te.RetryAfter
				d.logger.Warn("update polling rate limited", slog.Duration("retry_after", wait))
			} else {
				d.logger.Error("update polling failed", slog.String("error", err.Error()))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		for _, u := range updates {
			// Unqueued updates stay unconfirmed and are fetched again next run.
			if err := d.Enqueue(ctx, u); err != nil {
				return
			}
			d.mu.Lock()
			if u.ID >= d.offset {
				d.offset = u.ID + 1
			}
			d.mu.Unlock()
		}
	}
}

func (d *UpdateDispatcher) worker(ctx context.Context, queue <-chan model.Update) {
	defer d.wg.Done()
	for u := range queue {
		d.handle(ctx, u)
	}
}

func (d *UpdateDispatcher) handle(ctx context.Context, u model.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("update handler panicked",
				slog.Int64("update_id", u.ID),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if err := d.handler.HandleUpdate(ctx, u); err != nil {
		d.logger.Error("update handling failed",
			slog.Int64("update_id", u.ID),
			slog.Int64("chat_id", u.ChatID),
			slog.String("error", err.Error()),
		)
	}
}
