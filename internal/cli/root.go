// Package cli implements the vendbot command tree.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/polkiloo/vendbot/internal/config"
	"github.com/polkiloo/vendbot/internal/domain/model"
)

// RootOptions holds global flags for the operator commands.
type RootOptions struct {
	ConfigPath string
	JSON       bool
}

// Operator is the subset of the store the operator commands drive.
type Operator interface {
	Pending(ctx context.Context, limit int) ([]model.Order, error)
	Approve(ctx context.Context, id int64) (*model.Fulfillment, error)
	Reject(ctx context.Context, id int64, reason string) (*model.Order, error)
	Assign(ctx context.Context, orderID, itemID int64) (*model.Order, error)
}

// ServeFunc runs the bot process until ctx ends.
type ServeFunc func(ctx context.Context, args config.Args) error

// OperatorFactory builds an Operator; the returned func releases it.
type OperatorFactory func(ctx context.Context, args config.Args) (Operator, func(), error)

// Dependencies lets tests replace the process-level wiring.
type Dependencies struct {
	Serve    ServeFunc
	Operator OperatorFactory
}

// DefaultDependencies wires commands to the real fx graphs.
func DefaultDependencies() Dependencies {
	return Dependencies{Serve: serveApp, Operator: newOperator}
}

// NewRootCommand creates the root command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vendbot",
		Short: "Telegram storefront for digital goods",
		Long: `vendbot sells pre-provisioned account credentials over Telegram.

Customers pay by bank transfer and send a receipt; operators approve the
order and the bot hands over one credential from stock.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print results as JSON")

	cmd.AddCommand(NewServeCommand(deps.Serve))
	cmd.AddCommand(NewOrderCommand(opts, deps.Operator))
	cmd.AddCommand(NewHashPasswordCommand())

	return cmd
}

func (o *RootOptions) configArgs() config.Args {
	if o.ConfigPath == "" {
		return nil
	}
	return config.Args{"-config", o.ConfigPath}
}
