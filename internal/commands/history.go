package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerwell/ledgerwell/internal/journal"
	"github.com/ledgerwell/ledgerwell/internal/model"
)

const (
	dateFormat = "2006-01-02"
	timeFormat = "15:04:05"
)

type table struct {
	tw *tabwriter.Writer
}

func newTable(cmd *cobra.Command, headers ...string) *table {
	t := &table{tw: tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)}
	t.row(headers...)
	return t
}

func (t *table) row(cols ...string) {
	fmt.Fprintln(t.tw, strings.Join(cols, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var recent bool
	var limit int
	var from, to string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (from == "") != (to == "") {
				return fmt.Errorf("%w: --from and --to must be given together", model.ErrInvalidDateRange)
			}
			var start, end time.Time
			if from != "" {
				var err error
				if start, err = parseDate(from); err != nil {
					return err
				}
				if end, err = parseDate(to); err != nil {
					return err
				}
			}

			return withSession(cmd, opts, func(a *app, sess model.Session) error {
				var recs []model.TransactionRecord
				var err error
				switch {
				case from != "":
					recs, err = a.ledger.Search(cmd.Context(), sess.UserID, start, end)
				case recent:
					if limit <= 0 {
						limit = a.cfg.History.RecentLimit
					}
					recs, err = a.ledger.Recent(cmd.Context(), sess.UserID, limit)
				default:
					recs, err = a.ledger.History(cmd.Context(), sess.UserID)
				}
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No transactions")
					return nil
				}
				tw := newTable(cmd, "TRANSACTION", "DATE", "TIME", "TYPE", "AMOUNT", "FROM", "TO")
				for _, rec := range recs {
					at := rec.OccurredAt.UTC()
					tw.row(rec.ID, at.Format(dateFormat), at.Format(timeFormat), string(rec.Kind),
						model.FormatAmount(rec.Amount), dash(rec.FromAccount), dash(rec.ToAccount))
				}
				return tw.flush()
			})
		},
	}

	cmd.Flags().BoolVar(&recent, "recent", false, "show only the newest transactions")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of transactions for --recent (default from config)")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")

	return cmd
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", model.ErrInvalidDateRange, s)
	}
	return t, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all transactions to a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(a *app, sess model.Session) error {
				recs, err := a.ledger.History(cmd.Context(), sess.UserID)
				if err != nil {
					return err
				}
				if output == "-" {
					return journal.WriteCSV(cmd.OutOrStdout(), recs)
				}

				path := output
				if path == "" {
					path = filepath.Join(a.cfg.Export.Dir, "transactions_"+sess.UserID+".csv")
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("creating export: %w", err)
				}
				if err := journal.WriteCSV(f, recs); err != nil {
					f.Close()
					return fmt.Errorf("writing export: %w", err)
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("closing export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions to %s\n", len(recs), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default <export.dir>/transactions_<user id>.csv)")

	return cmd
}
