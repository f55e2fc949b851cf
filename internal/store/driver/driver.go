package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgerwell/ledgerwell/internal/config"
	"github.com/ledgerwell/ledgerwell/internal/store"
	"github.com/ledgerwell/ledgerwell/internal/store/memstore"
	"github.com/ledgerwell/ledgerwell/internal/store/postgres"
)

// Open returns the store for cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (store.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverMemory:
		return memstore.New(), nil
	case config.DriverFile:
		return memstore.Open(cfg.Path)
	case config.DriverPostgres:
		return postgres.Open(ctx, postgres.Config{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		}, logger)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
