package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/vendbot/internal/adapter/telegram"
	"github.com/polkiloo/vendbot/internal/app"
	"github.com/polkiloo/vendbot/internal/bot"
	"github.com/polkiloo/vendbot/internal/config"
	"github.com/polkiloo/vendbot/internal/conversation"
	"github.com/polkiloo/vendbot/internal/logger"
	"github.com/polkiloo/vendbot/internal/notify"
	"github.com/polkiloo/vendbot/internal/pkg/auth"
	"github.com/polkiloo/vendbot/internal/server/http/handlers"
	"github.com/polkiloo/vendbot/internal/server/http/router"
	"github.com/polkiloo/vendbot/internal/storage/postgres"
	"github.com/polkiloo/vendbot/internal/storage/redis"
	"github.com/polkiloo/vendbot/internal/usecase"
	"github.com/polkiloo/vendbot/internal/worker"
)

// Module composes the full bot process: storage, Bot API client, update
// dispatch and the HTTP server.
func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		core(),
		redis.Module,
		conversation.Module,
		bot.Module,
		router.Module,
		fx.Provide(
			func(c *telegram.HTTPClient) bot.Messenger { return c },
			func(c *telegram.HTTPClient) worker.Source { return c },
			func(f *app.StoreFacade) bot.Facade { return f },
			func(f *app.StoreFacade) handlers.OperatorFacade { return f },
			func(r *bot.Router) worker.Handler { return r },
			func(d *worker.UpdateDispatcher) handlers.UpdateQueue { return d },
			func(s *postgres.Storage) handlers.HealthChecker { return s },
		),
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}

// CommandModule provides the StoreFacade alone for one-shot operator commands.
func CommandModule(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		core(),
		app.FacadeModule,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}

func core() fx.Option {
	return fx.Options(
		config.Module,
		logger.Module,
		auth.Module,
		postgres.Module,
		telegram.Module,
		usecase.Module,
		notify.Module,
		fx.Provide(func(c *telegram.HTTPClient) notify.Sender { return c }),
	)
}
