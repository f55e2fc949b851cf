package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ledgerwell/ledgerwell/internal/model"
	"github.com/ledgerwell/ledgerwell/internal/store"
)

var errReadOnly = errors.New("write in read-only unit")

// memTx stages writes until commit. Reads see the unit's own staged writes
// layered over committed state.
type memTx struct {
	s        *Store
	writable bool

	newUsers     []model.User
	updatedUsers map[string]model.User
	newAccounts  []model.Account
	balances     map[accountKey]decimal.Decimal
	newTxns      []model.TransactionRecord

	held map[lockKey]chan struct{}
}

func newTx(s *Store, writable bool) *memTx {
	return &memTx{
		s:            s,
		writable:     writable,
		updatedUsers: make(map[string]model.User),
		balances:     make(map[accountKey]decimal.Decimal),
		held:         make(map[lockKey]chan struct{}),
	}
}

func (tx *memTx) release() {
	for k, sem := range tx.held {
		<-sem
		delete(tx.held, k)
	}
}

func (tx *memTx) checkWritable() error {
	if !tx.writable {
		return fmt.Errorf("%w: %v", model.ErrPersistence, errReadOnly)
	}
	return nil
}

func (tx *memTx) stagedAccount(k accountKey) (int, bool) {
	for i, a := range tx.newAccounts {
		if a.Variant == k.variant && a.Number == k.number {
			return i, true
		}
	}
	return -1, false
}

func (tx *memTx) InsertUser(_ context.Context, u model.User) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	for _, staged := range tx.newUsers {
		if staged.Username == u.Username {
			return fmt.Errorf("%w: %q", model.ErrUsernameTaken, u.Username)
		}
	}
	tx.s.mu.RLock()
	_, taken := tx.s.usernames[u.Username]
	tx.s.mu.RUnlock()
	if taken {
		return fmt.Errorf("%w: %q", model.ErrUsernameTaken, u.Username)
	}
	tx.newUsers = append(tx.newUsers, u)
	return nil
}

func (tx *memTx) UserByID(ctx context.Context, userID string, lock bool) (model.User, error) {
	if lock {
		if err := tx.lock(ctx, userLockKey(userID)); err != nil {
			return model.User{}, err
		}
	}
	if u, ok := tx.updatedUsers[userID]; ok {
		return u, nil
	}
	for _, u := range tx.newUsers {
		if u.ID == userID {
			return u, nil
		}
	}
	tx.s.mu.RLock()
	u, ok := tx.s.users[userID]
	tx.s.mu.RUnlock()
	if !ok {
		return model.User{}, fmt.Errorf("%w: %s", model.ErrUserNotFound, userID)
	}
	return u, nil
}

func (tx *memTx) UserByUsername(ctx context.Context, username string) (model.User, error) {
	for _, u := range tx.newUsers {
		if u.Username == username {
			return u, nil
		}
	}
	tx.s.mu.RLock()
	userID, ok := tx.s.usernames[username]
	tx.s.mu.RUnlock()
	if !ok {
		return model.User{}, fmt.Errorf("%w: %q", model.ErrUserNotFound, username)
	}
	return tx.UserByID(ctx, userID, false)
}

func (tx *memTx) UpdateUser(ctx context.Context, u model.User) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	for i, staged := range tx.newUsers {
		if staged.ID == u.ID {
			tx.newUsers[i] = u
			return nil
		}
	}
	if _, err := tx.UserByID(ctx, u.ID, false); err != nil {
		return err
	}
	tx.updatedUsers[u.ID] = u
	return nil
}

func (tx *memTx) InsertAccount(_ context.Context, a model.Account) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	for _, staged := range tx.newAccounts {
		if staged.OwnerUserID == a.OwnerUserID && staged.Variant == a.Variant {
			return fmt.Errorf("%w: %s account for user %s", model.ErrAccountExists, a.Variant, a.OwnerUserID)
		}
	}
	tx.s.mu.RLock()
	_, exists := tx.s.owners[ownerKey{a.OwnerUserID, a.Variant}]
	tx.s.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s account for user %s", model.ErrAccountExists, a.Variant, a.OwnerUserID)
	}
	tx.newAccounts = append(tx.newAccounts, a)
	return nil
}

func (tx *memTx) AccountByOwner(ctx context.Context, ownerUserID string, variant model.Variant, lock bool) (model.Account, error) {
	for _, a := range tx.newAccounts {
		if a.OwnerUserID == ownerUserID && a.Variant == variant {
			return a, nil
		}
	}
	tx.s.mu.RLock()
	number, ok := tx.s.owners[ownerKey{ownerUserID, variant}]
	tx.s.mu.RUnlock()
	if !ok {
		return model.Account{}, fmt.Errorf("%w: no %s account for user %s", model.ErrAccountNotFound, variant, ownerUserID)
	}
	if lock {
		if err := tx.lock(ctx, accountKey{variant, number}.key()); err != nil {
			return model.Account{}, err
		}
	}
	return tx.AccountByNumber(ctx, variant, number)
}

// lock takes k's mutex for the rest of the unit.
func (tx *memTx) lock(ctx context.Context, k lockKey) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if _, ok := tx.held[k]; ok {
		return nil
	}
	sem := tx.s.keyLock(k)
	select {
	case sem <- struct{}{}:
		tx.held[k] = sem
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: locking %s %s: %v", model.ErrPersistence, k.kind, k.id, ctx.Err())
	}
}

func (tx *memTx) AccountByNumber(_ context.Context, variant model.Variant, number string) (model.Account, error) {
	k := accountKey{variant, number}
	if i, ok := tx.stagedAccount(k); ok {
		return tx.newAccounts[i], nil
	}
	tx.s.mu.RLock()
	a, ok := tx.s.accounts[k]
	tx.s.mu.RUnlock()
	if !ok {
		return model.Account{}, fmt.Errorf("%w: %s", model.ErrAccountNotFound, number)
	}
	if bal, ok := tx.balances[k]; ok {
		a.Balance = bal
	}
	return a, nil
}

func (tx *memTx) SetBalance(ctx context.Context, variant model.Variant, number string, balance decimal.Decimal) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	k := accountKey{variant, number}
	if i, ok := tx.stagedAccount(k); ok {
		tx.newAccounts[i].Balance = balance
		return nil
	}
	if _, err := tx.AccountByNumber(ctx, variant, number); err != nil {
		return err
	}
	tx.balances[k] = balance
	return nil
}

func (tx *memTx) InsertTransaction(_ context.Context, rec model.TransactionRecord) (model.TransactionRecord, error) {
	if err := tx.checkWritable(); err != nil {
		return model.TransactionRecord{}, err
	}
	rec.Seq = tx.s.seq.Add(1)
	tx.newTxns = append(tx.newTxns, rec)
	return rec, nil
}

func (tx *memTx) Transactions(_ context.Context, q store.TxQuery) ([]model.TransactionRecord, error) {
	var out []model.TransactionRecord

	tx.s.mu.RLock()
	for _, rec := range tx.s.txns {
		if q.Matches(rec) {
			out = append(out, rec)
		}
	}
	tx.s.mu.RUnlock()
	for _, rec := range tx.newTxns {
		if q.Matches(rec) {
			out = append(out, rec)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].Seq > out[j].Seq
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
