package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/zooz/internal/export"
	"github.com/dukerupert/zooz/internal/ledger"
	"github.com/dukerupert/zooz/internal/model"
)

func newBalanceCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <child-id>",
		Short: "Show a child's earned, spent and current tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.ledger.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.out.emit(stats, func(w io.Writer) {
				row(w, "EARNED", "SPENT", "BALANCE")
				row(w, stats.TotalEarned, stats.TotalSpent, stats.Balance)
			})
		},
	}
}

func newHistoryCommand(root *RootOptions) *cobra.Command {
	var (
		sources []string
		from    string
		to      string
		limit   int
		xlsx    string
	)

	cmd := &cobra.Command{
		Use:   "history <child-id>",
		Short: "List a child's ledger entries, newest first",
		Example: `  zoozctl history 3f6c... --source redemption --limit 20
  zoozctl history 3f6c... --from 2026-01-01 --xlsx kim.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := ledger.HistoryFilter{Limit: limit}
			for _, s := range sources {
				f.Sources = append(f.Sources, model.TransactionSource(s))
			}
			var err error
			if f.From, err = parseDate(from, false); err != nil {
				return err
			}
			if f.To, err = parseDate(to, true); err != nil {
				return err
			}

			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			txns, err := a.ledger.History(ctx, args[0], f)
			if err != nil {
				return err
			}

			if xlsx != "" {
				c, err := a.users.GetChild(ctx, args[0])
				if err != nil {
					return err
				}
				stats, err := a.ledger.Stats(ctx, args[0])
				if err != nil {
					return err
				}
				out, err := os.Create(xlsx)
				if err != nil {
					return err
				}
				if err := export.WriteHistory(out, *c, txns, *stats); err != nil {
					out.Close()
					return err
				}
				if err := out.Close(); err != nil {
					return err
				}
			}

			return a.out.emit(txns, func(w io.Writer) {
				row(w, "DATE", "AMOUNT", "SOURCE", "RELATED", "DESCRIPTION")
				for _, t := range txns {
					row(w, t.CreatedAt.Format(time.RFC3339), t.Amount, t.Source, t.RelatedID, t.Description)
				}
			})
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "filter by source (repeatable)")
	cmd.Flags().StringVar(&from, "from", "", "earliest date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "latest date, YYYY-MM-DD (inclusive)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries (0 for all)")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "also write the entries to this xlsx file")
	return cmd
}

func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, &ExitError{Code: ExitCommandError, Err: fmt.Errorf("bad date %q, want YYYY-MM-DD", s)}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func newAdjustCommand(root *RootOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "adjust <child-id> <amount>",
		Short: "Record a manual credit (positive) or debit (negative)",
		Example: `  zoozctl adjust 3f6c... 25 --reason "birthday"
  zoozctl adjust --reason "lost library book" -- 3f6c... -5`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[1])
			if err != nil {
				return &ExitError{Code: ExitCommandError, Err: fmt.Errorf("amount %q is not an integer", args[1])}
			}
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.ledger.Adjust(cmd.Context(), operator, args[0], amount, reason)
			if err != nil {
				return err
			}
			balance, err := a.ledger.Balance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.out.emit(map[string]any{"transaction": t, "balance": balance}, func(w io.Writer) {
				row(w, "recorded", t.ID, t.Amount, "balance", balance)
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "description stored on the entry")
	cmd.MarkFlagRequired("reason")
	return cmd
}

func newReconcileCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [child-id...]",
		Short: "Recompute balances from the full history and compare",
		Long: `Walks every ledger entry of each child and compares the sum with the
balance query. With no arguments every child is checked. Exits 1 when any
child does not reconcile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			ids := args
			if len(ids) == 0 {
				children, err := a.users.ListByRole(ctx, model.RoleChild)
				if err != nil {
					return err
				}
				for _, c := range children {
					ids = append(ids, c.ID)
				}
			}

			results := make([]*ledger.Reconciliation, 0, len(ids))
			bad := 0
			for _, id := range ids {
				r, err := a.ledger.Verify(ctx, id)
				if err != nil {
					return err
				}
				if !r.OK() {
					bad++
				}
				results = append(results, r)
			}

			if err := a.out.emit(results, func(w io.Writer) {
				row(w, "CHILD", "ENTRIES", "BALANCE", "WALKED", "OK")
				for _, r := range results {
					row(w, r.ChildID, r.Entries, r.Balance, r.Walked, r.OK())
				}
			}); err != nil {
				return err
			}
			if bad > 0 {
				return &ExitError{Code: ExitFailure, Err: fmt.Errorf("%d of %d children do not reconcile", bad, len(results))}
			}
			return nil
		},
	}
}
