package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerwell/ledgerwell/internal/id"
	"github.com/ledgerwell/ledgerwell/internal/model"
	"github.com/ledgerwell/ledgerwell/internal/store"
)

// Service appends and queries transaction records.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a journal Service over s.
func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// Append validates rec and stores it inside tx. A missing ID or timestamp
// is assigned here. The returned record carries its store sequence.
func (s *Service) Append(ctx context.Context, tx store.Tx, rec model.TransactionRecord) (model.TransactionRecord, error) {
	if rec.ID == "" {
		rec.ID = id.NewTransactionID()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = s.now()
	}
	rec.OccurredAt = rec.OccurredAt.UTC().Truncate(store.Precision)

	if errs := ValidateRecord(rec); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return model.TransactionRecord{}, fmt.Errorf("%w: %w", model.ErrValidation, errors.Join(joined...))
	}

	stored, err := tx.InsertTransaction(ctx, rec)
	if err != nil {
		return model.TransactionRecord{}, fmt.Errorf("appending %s: %w", rec.ID, err)
	}
	return stored, nil
}

// AllFor returns every record of the owner, newest first.
func (s *Service) AllFor(ctx context.Context, ownerUserID string) ([]model.TransactionRecord, error) {
	return s.list(ctx, store.TxQuery{OwnerUserID: ownerUserID})
}

// RecentFor returns at most limit of the owner's newest records.
func (s *Service) RecentFor(ctx context.Context, ownerUserID string, limit int) ([]model.TransactionRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.list(ctx, store.TxQuery{OwnerUserID: ownerUserID, Limit: limit})
}

// SearchFor returns the owner's records whose calendar date falls within
// start..end inclusive, newest first.
func (s *Service) SearchFor(ctx context.Context, ownerUserID string, start, end time.Time) ([]model.TransactionRecord, error) {
	if store.Day(start).After(store.Day(end)) {
		return nil, fmt.Errorf("%w: %s is after %s", model.ErrInvalidDateRange,
			start.UTC().Format(dateFormat), end.UTC().Format(dateFormat))
	}
	return s.list(ctx, store.TxQuery{OwnerUserID: ownerUserID, From: start, To: end})
}

func (s *Service) list(ctx context.Context, q store.TxQuery) ([]model.TransactionRecord, error) {
	var recs []model.TransactionRecord
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		recs, err = tx.Transactions(ctx, q)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return recs, nil
}
