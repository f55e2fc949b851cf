package commands

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ledgerwell/ledgerwell/internal/accounts"
	"github.com/ledgerwell/ledgerwell/internal/ledger"
	"github.com/ledgerwell/ledgerwell/internal/model"
)

func newOpenCommand(opts *rootOptions) *cobra.Command {
	var initial, rate string

	cmd := &cobra.Command{
		Use:       "open <checking|savings>",
		Short:     "Open a checking or savings account",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(model.VariantChecking), string(model.VariantSavings)},
		RunE: func(cmd *cobra.Command, args []string) error {
			variant, err := model.ParseVariant(args[0])
			if err != nil {
				return err
			}
			p := accounts.OpenParams{Variant: variant, InitialDeposit: decimal.Zero}
			if initial != "" {
				if p.InitialDeposit, err = model.ParseAmount(initial); err != nil {
					return err
				}
			}
			if rate != "" {
				if variant != model.VariantSavings {
					return fmt.Errorf("%w: --rate applies to savings accounts only", model.ErrInvalidRate)
				}
				r, err := decimal.NewFromString(rate)
				if err != nil {
					return fmt.Errorf("%w: %q is not a number", model.ErrInvalidRate, rate)
				}
				p.InterestRate = &r
			}

			return withSession(cmd, opts, func(a *app, sess model.Session) error {
				p.OwnerUserID = sess.UserID
				acct, err := a.ledger.OpenAccount(cmd.Context(), p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Opened %s account %s with balance %s\n",
					acct.Variant, acct.Number, model.FormatAmount(acct.Balance))
				if acct.Variant == model.VariantSavings {
					fmt.Fprintf(cmd.OutOrStdout(), "Interest rate: %s%%\n", acct.InterestRate)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&initial, "initial-deposit", "", "opening balance")
	cmd.Flags().StringVar(&rate, "rate", "", "annual interest rate in percent (savings only)")

	return cmd
}

type moveFunc func(*ledger.Service, *cobra.Command, string, model.Variant, decimal.Decimal) (ledger.Receipt, error)

func newDepositCommand(opts *rootOptions) *cobra.Command {
	return newMoveCommand(opts, "deposit", "Deposit into an account",
		func(l *ledger.Service, cmd *cobra.Command, owner string, v model.Variant, amt decimal.Decimal) (ledger.Receipt, error) {
			return l.Deposit(cmd.Context(), owner, v, amt)
		})
}

func newWithdrawCommand(opts *rootOptions) *cobra.Command {
	return newMoveCommand(opts, "withdraw", "Withdraw from an account",
		func(l *ledger.Service, cmd *cobra.Command, owner string, v model.Variant, amt decimal.Decimal) (ledger.Receipt, error) {
			return l.Withdraw(cmd.Context(), owner, v, amt)
		})
}

func newMoveCommand(opts *rootOptions, use, short string, move moveFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <checking|savings> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			variant, err := model.ParseVariant(args[0])
			if err != nil {
				return err
			}
			amount, err := model.ParseAmount(args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(a *app, sess model.Session) error {
				r, err := move(a.ledger, cmd, sess.UserID, variant, amount)
				if err != nil {
					return err
				}
				printReceipt(cmd, r)
				return nil
			})
		},
	}
}

func printReceipt(cmd *cobra.Command, r ledger.Receipt) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s of %s recorded as %s\nNew %s balance: %s\n",
		r.Record.Kind, model.FormatAmount(r.Record.Amount), r.Record.ID,
		r.Account.Variant, model.FormatAmount(r.Account.Balance))
}

func newInterestCommand(opts *rootOptions) *cobra.Command {
	interestCmd := &cobra.Command{
		Use:   "interest",
		Short: "Preview or credit savings interest",
	}

	var months int
	calcCmd := &cobra.Command{
		Use:   "calc",
		Short: "Show the interest due for a number of months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(a *app, sess model.Session) error {
				interest, err := a.ledger.CalculateInterest(cmd.Context(), sess.UserID, months)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Interest for %d months: %s\n", months, model.FormatAmount(interest))
				return nil
			})
		},
	}
	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Credit interest for a number of months to savings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(a *app, sess model.Session) error {
				r, err := a.ledger.ApplyInterest(cmd.Context(), sess.UserID, months)
				if err != nil {
					return err
				}
				printReceipt(cmd, r)
				return nil
			})
		},
	}
	for _, c := range []*cobra.Command{calcCmd, applyCmd} {
		c.Flags().IntVar(&months, "months", 1, "number of months")
		interestCmd.AddCommand(c)
	}
	return interestCmd
}

func newBalanceCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show checking and savings balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(a *app, sess model.Session) error {
				sum, err := a.ledger.BalanceSummary(cmd.Context(), sess.UserID)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Checking: %s\n", summaryAmount(sum.Checking))
				fmt.Fprintf(w, "Savings:  %s\n", summaryAmount(sum.Savings))
				return nil
			})
		},
	}
}

func summaryAmount(d *decimal.Decimal) string {
	if d == nil {
		return "no account"
	}
	return model.FormatAmount(*d)
}

func newAccountsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List your accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(a *app, sess model.Session) error {
				accts, err := a.ledger.Accounts(cmd.Context(), sess.UserID)
				if err != nil {
					return err
				}
				if len(accts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No accounts")
					return nil
				}
				tw := newTable(cmd, "ACCOUNT", "VARIANT", "BALANCE", "RATE")
				for _, acct := range accts {
					rate := "-"
					if acct.Variant == model.VariantSavings {
						rate = acct.InterestRate.String() + "%"
					}
					tw.row(acct.Number, string(acct.Variant), model.FormatAmount(acct.Balance), rate)
				}
				return tw.flush()
			})
		},
	}
}
