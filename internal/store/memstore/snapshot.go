package memstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerwell/ledgerwell/internal/model"
)

const snapshotVersion = 1

type snapshotMeta struct {
	Storage   string    `json:"storage"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type persistUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type persistAccount struct {
	Number       string          `json:"number"`
	Variant      model.Variant   `json:"variant"`
	OwnerUserID  string          `json:"owner_user_id"`
	Balance      decimal.Decimal `json:"balance"`
	InterestRate decimal.Decimal `json:"interest_rate"`
}

type persistTxn struct {
	ID          string          `json:"id"`
	Seq         int64           `json:"seq"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        model.Kind      `json:"kind"`
	OccurredAt  time.Time       `json:"occurred_at"`
	FromAccount string          `json:"from_account,omitempty"`
	ToAccount   string          `json:"to_account,omitempty"`
	OwnerUserID string          `json:"owner_user_id"`
}

type snapshot struct {
	Meta         snapshotMeta     `json:"_meta"`
	Generation   int64            `json:"generation"`
	Seq          int64            `json:"seq"`
	Users        []persistUser    `json:"users"`
	Accounts     []persistAccount `json:"accounts"`
	Transactions []persistTxn     `json:"transactions"`
}

// snapshotLocked must be called with s.mu held.
func (s *Store) snapshotLocked() snapshot {
	snap := snapshot{
		Meta:       snapshotMeta{Storage: "json_snapshot", Version: snapshotVersion},
		Generation: s.gen + 1,
		Seq:        s.seq.Load(),
	}
	for _, u := range s.users {
		snap.Users = append(snap.Users, persistUser(u))
	}
	for _, a := range s.accounts {
		snap.Accounts = append(snap.Accounts, persistAccount(a))
	}
	for _, t := range s.txns {
		snap.Transactions = append(snap.Transactions, persistTxn{
			ID:          t.ID,
			Seq:         t.Seq,
			Amount:      t.Amount,
			Kind:        t.Kind,
			OccurredAt:  t.OccurredAt,
			FromAccount: t.FromAccount,
			ToAccount:   t.ToAccount,
			OwnerUserID: t.OwnerUserID,
		})
	}
	return snap
}

// restore replaces the store's contents with snap.
func (s *Store) restore(snap snapshot) error {
	if snap.Meta.Version > snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Meta.Version)
	}

	users := make(map[string]model.User, len(snap.Users))
	usernames := make(map[string]string, len(snap.Users))
	for _, pu := range snap.Users {
		users[pu.ID] = model.User(pu)
		usernames[pu.Username] = pu.ID
	}
	accounts := make(map[accountKey]model.Account, len(snap.Accounts))
	owners := make(map[ownerKey]string, len(snap.Accounts))
	for _, pa := range snap.Accounts {
		a := model.Account(pa)
		if !a.Variant.Valid() {
			return fmt.Errorf("account %s: unknown variant %q", a.Number, a.Variant)
		}
		accounts[accountKey{a.Variant, a.Number}] = a
		owners[ownerKey{a.OwnerUserID, a.Variant}] = a.Number
	}
	txns := make([]model.TransactionRecord, 0, len(snap.Transactions))
	for _, pt := range snap.Transactions {
		kind, err := model.ParseKind(string(pt.Kind))
		if err != nil {
			return fmt.Errorf("transaction %s: %w", pt.ID, err)
		}
		txns = append(txns, model.TransactionRecord{
			ID:          pt.ID,
			Seq:         pt.Seq,
			Amount:      pt.Amount,
			Kind:        kind,
			OccurredAt:  pt.OccurredAt,
			FromAccount: pt.FromAccount,
			ToAccount:   pt.ToAccount,
			OwnerUserID: pt.OwnerUserID,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users, s.usernames = users, usernames
	s.accounts, s.owners = accounts, owners
	s.txns = txns
	s.seq.Store(snap.Seq)
	s.gen = snap.Generation
	return nil
}

func loadSnapshot(path string) (snapshot, error) {
	var snap snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	err = json.NewDecoder(f).Decode(&snap)
	return snap, err
}

// saveSnapshot writes to path+".tmp" and renames it over path, so a failed
// write never leaves a truncated snapshot behind.
func saveSnapshot(path string, snap snapshot) error {
	snap.Meta.Timestamp = time.Now().UTC()
	tmp := path + ".tmp"

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}
