package memstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/ledgerwell/ledgerwell/internal/model"
	"github.com/ledgerwell/ledgerwell/internal/store"
)

type accountKey struct {
	variant model.Variant
	number  string
}

// lockKey names anything a unit can lock: an account or a user.
type lockKey struct {
	kind string
	id   string
}

func (k accountKey) key() lockKey {
	return lockKey{kind: string(k.variant), id: k.number}
}

func userLockKey(userID string) lockKey {
	return lockKey{kind: "user", id: userID}
}

type ownerKey struct {
	owner   string
	variant model.Variant
}

// Store implements store.Store in memory. Committed state lives in maps
// guarded by an RWMutex; accounts and users have their own locks, held from
// the moment a unit locks them until the unit ends.
type Store struct {
	mu        sync.RWMutex
	users     map[string]model.User
	usernames map[string]string
	accounts  map[accountKey]model.Account
	owners    map[ownerKey]string
	txns      []model.TransactionRecord
	seq       atomic.Int64

	locksMu sync.Mutex
	locks   map[lockKey]chan struct{}

	path string
	gen  int64 // generation of the snapshot the maps reflect
}

const fileLockRetry = 10 * time.Millisecond

// New returns an empty, purely in-memory store.
func New() *Store {
	return &Store{
		users:     make(map[string]model.User),
		usernames: make(map[string]string),
		accounts:  make(map[accountKey]model.Account),
		owners:    make(map[ownerKey]string),
		locks:     make(map[lockKey]chan struct{}),
	}
}

// Open returns a store persisted to the JSON snapshot at path, loading the
// snapshot first if the file exists. Several stores, in one process or many,
// may share a path: every unit takes a lock on path+".lock" and reloads the
// snapshot if another store committed since.
func Open(path string) (*Store, error) {
	s := New()
	s.path = path

	snap, err := loadSnapshot(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading snapshot %s: %v", model.ErrPersistence, path, err)
	}
	if err := s.restore(snap); err != nil {
		return nil, fmt.Errorf("%w: restoring snapshot %s: %v", model.ErrPersistence, path, err)
	}
	return s, nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	unlock, err := s.lockFile(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	tx := newTx(s, true)
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	return s.commit(tx)
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}
	unlock, err := s.lockFile(ctx, false)
	if err != nil {
		return err
	}
	defer unlock()

	tx := newTx(s, false)
	defer tx.release()
	return fn(tx)
}

// lockFile takes the snapshot file lock, exclusive for updates and shared
// for views, then brings the maps up to date with the snapshot. It is a
// no-op for purely in-memory stores.
func (s *Store) lockFile(ctx context.Context, exclusive bool) (func(), error) {
	if s.path == "" {
		return func() {}, nil
	}
	_ = os.MkdirAll(filepath.Dir(s.path), 0o755)

	fl := flock.New(s.path + ".lock")
	var locked bool
	var err error
	if exclusive {
		locked, err = fl.TryLockContext(ctx, fileLockRetry)
	} else {
		locked, err = fl.TryRLockContext(ctx, fileLockRetry)
	}
	if err == nil && !locked {
		err = errors.New("lock not acquired")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: locking %s: %v", model.ErrPersistence, fl.Path(), err)
	}
	unlock := func() { _ = fl.Unlock() }

	if err := s.reload(); err != nil {
		unlock()
		return nil, err
	}
	return unlock, nil
}

// reload replaces the maps with the snapshot on disk when its generation
// differs from the one last loaded or written by this store.
func (s *Store) reload() error {
	snap, err := loadSnapshot(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: loading snapshot %s: %v", model.ErrPersistence, s.path, err)
	}
	s.mu.RLock()
	current := s.gen
	s.mu.RUnlock()
	if snap.Generation == current {
		return nil
	}
	if err := s.restore(snap); err != nil {
		return fmt.Errorf("%w: restoring snapshot %s: %v", model.ErrPersistence, s.path, err)
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// keyLock returns the one-slot semaphore for k. Sending acquires it,
// receiving releases it.
func (s *Store) keyLock(k lockKey) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	sem, ok := s.locks[k]
	if !ok {
		sem = make(chan struct{}, 1)
		s.locks[k] = sem
	}
	return sem
}

// commit applies the staged writes of tx, re-checking uniqueness against
// state committed by other units since tx staged them.
func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range tx.newUsers {
		if _, taken := s.usernames[u.Username]; taken {
			return fmt.Errorf("%w: %q", model.ErrUsernameTaken, u.Username)
		}
	}
	for _, a := range tx.newAccounts {
		if _, exists := s.owners[ownerKey{a.OwnerUserID, a.Variant}]; exists {
			return fmt.Errorf("%w: %s account for user %s", model.ErrAccountExists, a.Variant, a.OwnerUserID)
		}
	}
	for k := range tx.balances {
		if _, staged := tx.stagedAccount(k); staged {
			continue
		}
		if _, ok := s.accounts[k]; !ok {
			return fmt.Errorf("%w: %s", model.ErrAccountNotFound, k.number)
		}
	}

	undo := s.apply(tx)
	if s.path == "" {
		return nil
	}
	snap := s.snapshotLocked()
	if err := saveSnapshot(s.path, snap); err != nil {
		undo()
		return fmt.Errorf("%w: writing snapshot: %v", model.ErrPersistence, err)
	}
	s.gen = snap.Generation
	return nil
}

// apply must be called with s.mu held. The returned func reverts it.
func (s *Store) apply(tx *memTx) func() {
	var undo []func()

	for _, u := range tx.newUsers {
		s.users[u.ID] = u
		s.usernames[u.Username] = u.ID
		undo = append(undo, func() {
			delete(s.users, u.ID)
			delete(s.usernames, u.Username)
		})
	}
	for id, u := range tx.updatedUsers {
		if prev, ok := s.users[id]; ok {
			undo = append(undo, func() { s.users[id] = prev })
		}
		s.users[id] = u
	}
	for _, a := range tx.newAccounts {
		k := accountKey{a.Variant, a.Number}
		s.accounts[k] = a
		s.owners[ownerKey{a.OwnerUserID, a.Variant}] = a.Number
		undo = append(undo, func() {
			delete(s.accounts, k)
			delete(s.owners, ownerKey{a.OwnerUserID, a.Variant})
		})
	}
	for k, bal := range tx.balances {
		prev := s.accounts[k]
		next := prev
		next.Balance = bal
		s.accounts[k] = next
		undo = append(undo, func() { s.accounts[k] = prev })
	}
	if n := len(tx.newTxns); n > 0 {
		before := len(s.txns)
		s.txns = append(s.txns, tx.newTxns...)
		undo = append(undo, func() { s.txns = s.txns[:before] })
	}

	return func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
}
