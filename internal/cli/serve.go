package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/polkiloo/vendbot/internal/config"
	"github.com/polkiloo/vendbot/internal/di"
)

// NewServeCommand creates the serve command. Its arguments are passed
// through to the configuration flag set, e.g. `serve -a :8080 -d postgres://...`.
func NewServeCommand(serve ServeFunc) *cobra.Command {
	return &cobra.Command{
		Use:                "serve [config flags]",
		Short:              "Run the bot, the webhook endpoint and the operator API",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), config.Args(args))
		},
	}
}

func serveApp(ctx context.Context, args config.Args) error {
	app := fx.New(
		fx.Provide(func() context.Context { return ctx }),
		fx.Supply(args),
		di.Module(),
	)
	return run(ctx, app)
}

func run(ctx context.Context, app *fx.App) error {
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-app.Done():
	}

	if err := app.Stop(context.Background()); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}
	return nil
}
