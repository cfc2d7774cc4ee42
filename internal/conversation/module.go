package conversation

import "go.uber.org/fx"

// Module provides the conversation Machine. Steps are registered by the bot.
var Module = fx.Provide(NewMachine)
