package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/polkiloo/vendbot/internal/app"
	"github.com/polkiloo/vendbot/internal/config"
	"github.com/polkiloo/vendbot/internal/di"
	"github.com/polkiloo/vendbot/internal/pkg/format"
	"github.com/polkiloo/vendbot/internal/usecase"
)

// NewOrderCommand creates the order command group.
func NewOrderCommand(rootOpts *RootOptions, factory OperatorFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Review purchases without the chat interface",
	}

	var limit int
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List pending orders, oldest first",
		Args:  cobra.NoArgs,
		RunE: withOperator(rootOpts, factory, func(ctx context.Context, op Operator, cmd *cobra.Command, _ []string) error {
			orders, err := op.Pending(ctx, limit)
			if err != nil {
				return err
			}
			if rootOpts.JSON {
				return writeJSON(cmd.OutOrStdout(), orders)
			}
			if len(orders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending orders")
				return nil
			}
			for _, o := range orders {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d\t%s\t%d\t%s\t%s\n",
					o.ID, format.Time(o.CreatedAt), o.CustomerID, o.CustomerName, format.Money(o.Amount))
			}
			return nil
		}),
	}
	pending.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of orders")

	approve := &cobra.Command{
		Use:   "approve <order-id>",
		Short: "Allocate an item and deliver it to the buyer",
		Args:  cobra.ExactArgs(1),
		RunE: withOperator(rootOpts, factory, func(ctx context.Context, op Operator, cmd *cobra.Command, args []string) error {
			id, err := usecase.ParseID("order", args[0])
			if err != nil {
				return err
			}
			res, err := op.Approve(ctx, id)
			if err != nil {
				return err
			}
			if rootOpts.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"order_id":  res.Allocation.Order.ID,
					"item_id":   res.Allocation.Item.ID,
					"delivered": res.Delivered,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order #%d completed with item #%d\n", res.Allocation.Order.ID, res.Allocation.Item.ID)
			if !res.Delivered {
				fmt.Fprintf(cmd.OutOrStdout(), "delivery failed, send manually:\n%s\n", app.DeliveryMessage(res.Allocation))
			}
			return nil
		}),
	}

	reject := &cobra.Command{
		Use:   "reject <order-id> [reason...]",
		Short: "Cancel a pending order",
		Args:  cobra.MinimumNArgs(1),
		RunE: withOperator(rootOpts, factory, func(ctx context.Context, op Operator, cmd *cobra.Command, args []string) error {
			id, err := usecase.ParseID("order", args[0])
			if err != nil {
				return err
			}
			order, err := op.Reject(ctx, id, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if rootOpts.JSON {
				return writeJSON(cmd.OutOrStdout(), order)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order #%d %s\n", order.ID, order.Status)
			return nil
		}),
	}

	assign := &cobra.Command{
		Use:   "assign <order-id> <item-id>",
		Short: "Pin a specific item to a pending order",
		Args:  cobra.ExactArgs(2),
		RunE: withOperator(rootOpts, factory, func(ctx context.Context, op Operator, cmd *cobra.Command, args []string) error {
			orderID, err := usecase.ParseID("order", args[0])
			if err != nil {
				return err
			}
			itemID, err := usecase.ParseID("item", args[1])
			if err != nil {
				return err
			}
			order, err := op.Assign(ctx, orderID, itemID)
			if err != nil {
				return err
			}
			if rootOpts.JSON {
				return writeJSON(cmd.OutOrStdout(), order)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "item #%d assigned to order #%d\n", itemID, order.ID)
			return nil
		}),
	}

	cmd.AddCommand(pending, approve, reject, assign)
	return cmd
}

type operatorAction func(ctx context.Context, op Operator, cmd *cobra.Command, args []string) error

func withOperator(rootOpts *RootOptions, factory OperatorFactory, action operatorAction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		op, release, err := factory(ctx, rootOpts.configArgs())
		if err != nil {
			return err
		}
		defer release()
		return action(ctx, op, cmd, args)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newOperator(ctx context.Context, args config.Args) (Operator, func(), error) {
	var facade *app.StoreFacade
	fxApp := fx.New(
		fx.NopLogger,
		fx.Provide(func() context.Context { return ctx }),
		fx.Supply(args),
		di.CommandModule(),
		fx.Populate(&facade),
	)
	if err := fxApp.Start(ctx); err != nil {
		return nil, nil, err
	}
	release := func() { _ = fxApp.Stop(context.Background()) }
	return facade, release, nil
}

var _ Operator = (*app.StoreFacade)(nil)
