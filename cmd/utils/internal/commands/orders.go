package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/appetiteclub/pos/pkg/lifecycle"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04"

func ordersCommand(r *runner) *cobra.Command {
	var status, search string

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "list orders from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := r.controller(cmd)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			orders, err := ctrl.Filter(lifecycle.Query{Status: status, Search: search})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			writeOrders(out, orders)
			fmt.Fprintf(out, "%d order(s)\n", len(orders))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "all", "only orders with this status")
	cmd.Flags().StringVar(&search, "search", "", "match order id, table number or waiter")
	return cmd
}

func boardCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "show the kitchen board columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := r.controller(cmd)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			b := ctrl.Board(r.opts.Now())
			out := cmd.OutOrStdout()
			writeColumn(out, "NEW", b.New)
			writeColumn(out, "READY", b.Ready)
			writeColumn(out, "COMPLETED", b.Completed)
			fmt.Fprintf(out, "completed today: %d\n", b.CompletedToday)
			return nil
		},
	}
}

func writeColumn(out io.Writer, title string, orders []lifecycle.Order) {
	fmt.Fprintf(out, "== %s (%d)\n", title, len(orders))
	if len(orders) > 0 {
		writeOrders(out, orders)
	}
	fmt.Fprintln(out)
}

func writeOrders(out io.Writer, orders []lifecycle.Order) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTABLE\tWAITER\tTOTAL\tPAYMENT\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			o.ID,
			o.Status.Code(),
			o.TableNumber,
			dash(o.WaiterName),
			o.Total.String(),
			dash(o.PaymentStatus.Code()),
			o.CreatedAt.Local().Format(timeLayout),
		)
	}
	tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
