package telegram

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/vendbot/internal/config"
)

// Module exposes the Bot API client to the fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (*HTTPClient, error) {
	return NewHTTPClient(p.Config.TelegramAPIURL, p.Config.BotToken, p.Config.PollTimeout, p.Logger)
}
