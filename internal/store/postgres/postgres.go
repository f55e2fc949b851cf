package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerwell/ledgerwell/internal/logging"
	"github.com/ledgerwell/ledgerwell/internal/model"
	"github.com/ledgerwell/ledgerwell/internal/store"
)

// Config holds connection settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectAttempts int
	RetryInterval   time.Duration
}

// Store implements store.Store on a *sql.DB. Each unit of work is one
// database transaction and locked lookups use SELECT ... FOR UPDATE.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects, retrying while the database comes up, and runs migrations.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	logger = logging.OrDiscard(logger)
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 5
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", model.ErrPersistence, err)
	}
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		logger.Info("waiting for database", "attempt", i+1, "of", attempts)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("%w: connecting: %v", model.ErrPersistence, ctx.Err())
		case <-time.After(interval):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: database unreachable after %d attempts: %v", model.ErrPersistence, attempts, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	logger.Info("database connection established")

	s := &Store{db: db, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates tables and indexes idempotently.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migration failed: %v", model.ErrPersistence, err)
		}
	}
	s.logger.Info("migrations completed")
	return nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, false, fn)
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", model.ErrPersistence, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&pgTx{q: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", model.ErrPersistence, err)
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool for tests and maintenance tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id    VARCHAR(64)  PRIMARY KEY,
		username   VARCHAR(255) NOT NULL,
		password   VARCHAR(255) NOT NULL,
		full_name  VARCHAR(255) NOT NULL DEFAULT '',
		email      VARCHAR(255) NOT NULL DEFAULT '',
		phone      VARCHAR(64)  NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ  NOT NULL,
		CONSTRAINT users_username_key UNIQUE (username)
	)`,
	`CREATE TABLE IF NOT EXISTS checking_accounts (
		account_number VARCHAR(64)   PRIMARY KEY,
		owner_user_id  VARCHAR(64)   NOT NULL REFERENCES users(user_id),
		balance        NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		CONSTRAINT checking_accounts_owner_key UNIQUE (owner_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS savings_accounts (
		account_number VARCHAR(64)   PRIMARY KEY,
		owner_user_id  VARCHAR(64)   NOT NULL REFERENCES users(user_id),
		balance        NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		interest_rate  NUMERIC(9,4)  NOT NULL DEFAULT 2.5 CHECK (interest_rate >= 0),
		CONSTRAINT savings_accounts_owner_key UNIQUE (owner_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		seq            BIGSERIAL     NOT NULL UNIQUE,
		transaction_id VARCHAR(64)   PRIMARY KEY,
		amount         NUMERIC(20,2) NOT NULL CHECK (amount > 0),
		kind           VARCHAR(32)   NOT NULL,
		occurred_date  DATE          NOT NULL,
		occurred_time  TIME          NOT NULL,
		from_account   VARCHAR(64),
		to_account     VARCHAR(64),
		owner_user_id  VARCHAR(64)   NOT NULL REFERENCES users(user_id),
		CHECK ((from_account IS NULL) <> (to_account IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_owner_occurred
		ON transactions(owner_user_id, occurred_date DESC, occurred_time DESC, seq DESC)`,
}
