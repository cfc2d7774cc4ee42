package bot

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/vendbot/internal/conversation"
)

// Module provides the update Router. Facade and Messenger come from the application graph.
var Module = fx.Provide(newRouter)

type routerParams struct {
	fx.In

	Facade    Facade
	Machine   *conversation.Machine
	Messenger Messenger
	Logger    *slog.Logger
}

func newRouter(p routerParams) *Router {
	return NewRouter(p.Facade, p.Machine, p.Messenger, p.Logger)
}
