package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/appetiteclub/pos/pkg/enums/orderstatus"
	"github.com/appetiteclub/pos/pkg/lifecycle"
	"github.com/spf13/cobra"
)

func setStatusCommand(r *runner) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "set-status [id] [status]",
		Short: "move an order to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := lifecycle.ParseOrderID(args[0])
			if err != nil {
				return err
			}
			to, err := orderstatus.Parse(args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			notifier := lifecycle.NotifierFunc(func(_ context.Context, n lifecycle.Notification) {
				if n.Description != "" {
					fmt.Fprintf(out, "[%s] %s %s\n", n.Level, n.Message, n.Description)
					return
				}
				fmt.Fprintf(out, "[%s] %s\n", n.Level, n.Message)
			})

			ctrl, err := r.controller(cmd,
				lifecycle.WithNotifier(notifier),
				lifecycle.WithStrictTransitions(!force),
			)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			ctx := lifecycle.WithActor(cmd.Context(), AppName)
			if err := ctrl.ChangeStatus(ctx, id, to); err != nil {
				return err
			}

			if o, ok := ctrl.Get(id); ok {
				fmt.Fprintf(out, "order %d is %s\n", o.ID, o.Status.Code())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "allow moves outside the kitchen flow")
	return cmd
}

func watchCommand(r *runner) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "poll the store and print order changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := r.controller(cmd)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %d order(s) every %s\n", ctrl.Len(), interval)

			changes := ctrl.Subscribe(AppName)
			defer ctrl.Unsubscribe(AppName)

			ctx := cmd.Context()
			poller := lifecycle.NewPoller(ctrl, interval, r.opts.Logger)
			if err := poller.Start(ctx); err != nil {
				return err
			}
			defer poller.Stop(context.WithoutCancel(ctx))

			for {
				select {
				case <-ctx.Done():
					return nil
				case c, ok := <-changes:
					if !ok {
						return nil
					}
					writeChange(out, c)
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", lifecycle.DefaultPollInterval, "poll interval")
	return cmd
}

func writeChange(out io.Writer, c lifecycle.Change) {
	ts := c.At.Local().Format("15:04:05")
	switch c.Kind {
	case lifecycle.ChangeAdded:
		fmt.Fprintf(out, "%s + order %d %s\n", ts, c.Order.ID, c.Order.Status.Code())
	case lifecycle.ChangeUpdated:
		if c.Previous != nil && c.Previous.Status != c.Order.Status {
			fmt.Fprintf(out, "%s ~ order %d %s -> %s\n", ts, c.Order.ID, c.Previous.Status.Code(), c.Order.Status.Code())
			return
		}
		fmt.Fprintf(out, "%s ~ order %d updated\n", ts, c.Order.ID)
	case lifecycle.ChangeRemoved:
		fmt.Fprintf(out, "%s - order %d\n", ts, c.OrderID)
	}
}
