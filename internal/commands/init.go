package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerwell/ledgerwell/internal/config"
)

func newInitCommand(opts *rootOptions) *cobra.Command {
	var driverName, path, dsn string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a new ledgerwell config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if driverName != "" {
				cfg.Storage.Driver = driverName
			}
			if path != "" {
				cfg.Storage.Path = path
			}
			if dsn != "" {
				cfg.Storage.DSN = dsn
			}
			if err := validateForCLI(cfg); err != nil {
				return err
			}

			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", opts.configPath)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("checking %s: %w", opts.configPath, err)
			}

			if err := config.Save(opts.configPath, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (storage: %s)\n", opts.configPath, cfg.Storage.Driver)
			return nil
		},
	}

	cmd.Flags().StringVar(&driverName, "driver", "", "storage driver: file or postgres")
	cmd.Flags().StringVar(&path, "path", "", "snapshot file for the file driver")
	cmd.Flags().StringVar(&dsn, "dsn", "", "connection string for the postgres driver")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}
