package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/vendbot/internal/config"
	"github.com/polkiloo/vendbot/internal/domain/repository"
	"github.com/polkiloo/vendbot/internal/notify"
	"github.com/polkiloo/vendbot/internal/usecase"
	"github.com/polkiloo/vendbot/internal/worker"
)

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	FacadeModule,
	fx.Provide(
		newHTTPServer,
		newUpdateDispatcher,
	),
	fx.Invoke(registerLifecycle),
)

// FacadeModule provides only the StoreFacade, for one-shot commands that do not serve traffic.
var FacadeModule = fx.Provide(newStoreFacade)

type facadeParams struct {
	fx.In

	Orders      *usecase.OrderUseCase
	Allocation  *usecase.AllocationUseCase
	Inventory   *usecase.InventoryUseCase
	Customers   *usecase.CustomerUseCase
	Payments    *usecase.PaymentChannelUseCase
	Settings    *usecase.SettingsUseCase
	Auth        *usecase.OperatorAuthUseCase
	Broadcaster *notify.Broadcaster
	Sender      notify.Sender
	Config      *config.Config
	Logger      *slog.Logger
}

func newStoreFacade(p facadeParams) *StoreFacade {
	return NewStoreFacade(UseCases{
		Orders:     p.Orders,
		Allocation: p.Allocation,
		Inventory:  p.Inventory,
		Customers:  p.Customers,
		Payments:   p.Payments,
		Settings:   p.Settings,
		Auth:       p.Auth,
	}, p.Broadcaster, p.Sender, p.Config, p.Logger)
}

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:    p.Config.RunAddress,
		Handler: p.Router,
	}
}

type dispatcherParams struct {
	fx.In

	Handler worker.Handler
	Source  worker.Source
	Dedupe  repository.UpdateDeduplicator
	Config  *config.Config
	Logger  *slog.Logger
}

// newUpdateDispatcher polls for updates unless a webhook secret is configured,
// in which case updates only arrive through the webhook endpoint.
func newUpdateDispatcher(p dispatcherParams) *worker.UpdateDispatcher {
	source := p.Source
	if p.Config.WebhookSecret != "" {
		source = nil
	}
	return worker.NewUpdateDispatcher(
		p.Handler,
		source,
		p.Dedupe,
		p.Config.WorkerPoolSize,
		p.Config.PollTimeout,
		p.Logger,
	)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Dispatcher *worker.UpdateDispatcher
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			mode := "polling"
			if p.Config.WebhookSecret != "" {
				mode = "webhook"
			}
			p.Logger.Info("starting vendbot",
				slog.String("addr", p.Server.Addr),
				slog.String("mode", mode),
				slog.Int("workers", p.Config.WorkerPoolSize),
			)
			p.Dispatcher.Start(ctx)
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer cancel()

			serverErr := p.Server.Shutdown(shutdownCtx)
			p.Dispatcher.Stop()

			if serverErr != nil && !errors.Is(serverErr, http.ErrServerClosed) {
				return serverErr
			}
			p.Logger.Info("vendbot stopped")
			return nil
		},
	})
}
