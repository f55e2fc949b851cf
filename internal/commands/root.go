package commands

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerwell/ledgerwell/internal/buildinfo"
	"github.com/ledgerwell/ledgerwell/internal/config"
	"github.com/ledgerwell/ledgerwell/internal/identity"
	"github.com/ledgerwell/ledgerwell/internal/ledger"
	"github.com/ledgerwell/ledgerwell/internal/logging"
	"github.com/ledgerwell/ledgerwell/internal/model"
	"github.com/ledgerwell/ledgerwell/internal/store"
	"github.com/ledgerwell/ledgerwell/internal/store/driver"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	username   string
	password   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "ledgerwell",
		Short:   "Personal banking ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", config.DefaultPath, "config file")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVarP(&opts.username, "username", "u", "", "username (default $LEDGERWELL_USERNAME)")
	pf.StringVarP(&opts.password, "password", "p", "", "password (default $LEDGERWELL_PASSWORD)")

	rootCmd.AddCommand(
		newInitCommand(opts),
		newRegisterCommand(opts),
		newProfileCommand(opts),
		newOpenCommand(opts),
		newDepositCommand(opts),
		newWithdrawCommand(opts),
		newInterestCommand(opts),
		newBalanceCommand(opts),
		newAccountsCommand(opts),
		newHistoryCommand(opts),
		newExportCommand(opts),
	)

	return rootCmd
}

// app is the set of services one command invocation works with.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store.Store
	identity *identity.Service
	ledger   *ledger.Service
}

func openApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	if err := config.LoadEnv(opts.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := validateForCLI(cfg); err != nil {
		return nil, err
	}
	rate, err := cfg.Savings.Rate()
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Logging, cmd.ErrOrStderr())
	s, err := driver.Open(cmd.Context(), cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		identity: identity.NewService(s, logger),
		ledger:   ledger.NewService(s, rate, logger),
	}, nil
}

// validateForCLI is cfg.Validate plus the rule that a command's writes must
// outlive its process.
func validateForCLI(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if strings.EqualFold(cfg.Storage.Driver, config.DriverMemory) {
		return fmt.Errorf("invalid config: storage driver %q keeps nothing between commands, use %q or %q",
			config.DriverMemory, config.DriverFile, config.DriverPostgres)
	}
	return nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// closeApp closes a, joining any close error into *errp.
func closeApp(a *app, errp *error) {
	*errp = errors.Join(*errp, a.Close())
}

// login authenticates the invocation's credentials.
func (a *app) login(ctx context.Context, opts *rootOptions) (model.Session, error) {
	username, password := opts.credentials()
	if username == "" {
		return model.Session{}, fmt.Errorf("%w: --username is required", model.ErrInvalidCredentials)
	}
	return a.identity.Login(ctx, username, password)
}

func (o *rootOptions) credentials() (string, string) {
	return cmp.Or(o.username, os.Getenv("LEDGERWELL_USERNAME")),
		cmp.Or(o.password, os.Getenv("LEDGERWELL_PASSWORD"))
}

// withSession opens the app, logs in and runs fn.
func withSession(cmd *cobra.Command, opts *rootOptions, fn func(*app, model.Session) error) (err error) {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	sess, err := a.login(cmd.Context(), opts)
	if err != nil {
		return err
	}
	return fn(a, sess)
}
