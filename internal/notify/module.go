package notify

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/vendbot/internal/config"
	"github.com/polkiloo/vendbot/internal/domain/repository"
)

// Module provides the Broadcaster. A Sender must be supplied by the transport.
var Module = fx.Provide(newBroadcaster)

type broadcasterParams struct {
	fx.In

	Sender    Sender
	Customers repository.CustomerRepository
	Config    *config.Config
	Logger    *slog.Logger
}

func newBroadcaster(p broadcasterParams) *Broadcaster {
	return NewBroadcaster(p.Sender, p.Customers, p.Config.BroadcastConcurrency, p.Logger)
}
