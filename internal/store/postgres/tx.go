package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ledgerwell/ledgerwell/internal/model"
	"github.com/ledgerwell/ledgerwell/internal/store"
)

const (
	uniqueViolation = "23505"
	dateLayout      = "2006-01-02"
	timeLayout      = "15:04:05.999999"
)

type pgTx struct {
	q *sql.Tx
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrPersistence, op, err)
}

func accountTable(v model.Variant) (string, error) {
	switch v {
	case model.VariantChecking:
		return "checking_accounts", nil
	case model.VariantSavings:
		return "savings_accounts", nil
	}
	return "", fmt.Errorf("%w: %q", model.ErrInvalidVariant, v)
}

func (tx *pgTx) InsertUser(ctx context.Context, u model.User) error {
	_, err := tx.q.ExecContext(ctx,
		`INSERT INTO users (user_id, username, password, full_name, email, phone, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.Password, u.FullName, u.Email, u.Phone, u.CreatedAt.UTC(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == "users_username_key" {
			return fmt.Errorf("%w: %q", model.ErrUsernameTaken, u.Username)
		}
		return persistence("inserting user", err)
	}
	return nil
}

const userColumns = `user_id, username, password, full_name, email, phone, created_at`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.FullName, &u.Email, &u.Phone, &u.CreatedAt)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, err
}

func (tx *pgTx) UserByID(ctx context.Context, userID string, lock bool) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	u, err := scanUser(tx.q.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("%w: %s", model.ErrUserNotFound, userID)
	}
	if err != nil {
		return model.User{}, persistence("loading user", err)
	}
	return u, nil
}

func (tx *pgTx) UserByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(tx.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("%w: %q", model.ErrUserNotFound, username)
	}
	if err != nil {
		return model.User{}, persistence("loading user", err)
	}
	return u, nil
}

func (tx *pgTx) UpdateUser(ctx context.Context, u model.User) error {
	res, err := tx.q.ExecContext(ctx,
		`UPDATE users SET full_name = $1, email = $2, phone = $3 WHERE user_id = $4`,
		u.FullName, u.Email, u.Phone, u.ID,
	)
	if err != nil {
		return persistence("updating user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", model.ErrUserNotFound, u.ID)
	}
	return nil
}

func (tx *pgTx) InsertAccount(ctx context.Context, a model.Account) error {
	table, err := accountTable(a.Variant)
	if err != nil {
		return err
	}
	if a.Variant == model.VariantSavings {
		_, err = tx.q.ExecContext(ctx,
			`INSERT INTO savings_accounts (account_number, owner_user_id, balance, interest_rate)
			 VALUES ($1, $2, $3, $4)`,
			a.Number, a.OwnerUserID, a.Balance, a.InterestRate,
		)
	} else {
		_, err = tx.q.ExecContext(ctx,
			`INSERT INTO `+table+` (account_number, owner_user_id, balance) VALUES ($1, $2, $3)`,
			a.Number, a.OwnerUserID, a.Balance,
		)
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && strings.HasSuffix(pqErr.Constraint, "_owner_key") {
			return fmt.Errorf("%w: %s account for user %s", model.ErrAccountExists, a.Variant, a.OwnerUserID)
		}
		return persistence("inserting account", err)
	}
	return nil
}

func (tx *pgTx) scanAccount(row *sql.Row, v model.Variant) (model.Account, error) {
	a := model.Account{Variant: v}
	var err error
	if v == model.VariantSavings {
		err = row.Scan(&a.Number, &a.OwnerUserID, &a.Balance, &a.InterestRate)
	} else {
		err = row.Scan(&a.Number, &a.OwnerUserID, &a.Balance)
	}
	return a, err
}

func accountColumns(v model.Variant) string {
	if v == model.VariantSavings {
		return "account_number, owner_user_id, balance, interest_rate"
	}
	return "account_number, owner_user_id, balance"
}

func (tx *pgTx) AccountByOwner(ctx context.Context, ownerUserID string, variant model.Variant, lock bool) (model.Account, error) {
	table, err := accountTable(variant)
	if err != nil {
		return model.Account{}, err
	}
	query := `SELECT ` + accountColumns(variant) + ` FROM ` + table + ` WHERE owner_user_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	a, err := tx.scanAccount(tx.q.QueryRowContext(ctx, query, ownerUserID), variant)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("%w: no %s account for user %s", model.ErrAccountNotFound, variant, ownerUserID)
	}
	if err != nil {
		return model.Account{}, persistence("loading account", err)
	}
	return a, nil
}

func (tx *pgTx) AccountByNumber(ctx context.Context, variant model.Variant, number string) (model.Account, error) {
	table, err := accountTable(variant)
	if err != nil {
		return model.Account{}, err
	}
	a, err := tx.scanAccount(tx.q.QueryRowContext(ctx,
		`SELECT `+accountColumns(variant)+` FROM `+table+` WHERE account_number = $1`, number), variant)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("%w: %s", model.ErrAccountNotFound, number)
	}
	if err != nil {
		return model.Account{}, persistence("loading account", err)
	}
	return a, nil
}

func (tx *pgTx) SetBalance(ctx context.Context, variant model.Variant, number string, balance decimal.Decimal) error {
	table, err := accountTable(variant)
	if err != nil {
		return err
	}
	res, err := tx.q.ExecContext(ctx,
		`UPDATE `+table+` SET balance = $1 WHERE account_number = $2`, balance, number)
	if err != nil {
		return persistence("updating balance", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistence("updating balance", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", model.ErrAccountNotFound, number)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (tx *pgTx) InsertTransaction(ctx context.Context, rec model.TransactionRecord) (model.TransactionRecord, error) {
	at := rec.OccurredAt.UTC()
	err := tx.q.QueryRowContext(ctx,
		`INSERT INTO transactions (transaction_id, amount, kind, occurred_date, occurred_time, from_account, to_account, owner_user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING seq`,
		rec.ID, rec.Amount, string(rec.Kind), at.Format(dateLayout), at.Format(timeLayout),
		nullable(rec.FromAccount), nullable(rec.ToAccount), rec.OwnerUserID,
	).Scan(&rec.Seq)
	if err != nil {
		return model.TransactionRecord{}, persistence("inserting transaction", err)
	}
	return rec, nil
}

func (tx *pgTx) Transactions(ctx context.Context, q store.TxQuery) ([]model.TransactionRecord, error) {
	var (
		where = []string{"owner_user_id = $1"}
		args  = []any{q.OwnerUserID}
	)
	if !q.From.IsZero() {
		args = append(args, store.Day(q.From).Format(dateLayout))
		where = append(where, fmt.Sprintf("occurred_date >= $%d", len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, store.Day(q.To).Format(dateLayout))
		where = append(where, fmt.Sprintf("occurred_date <= $%d", len(args)))
	}
	query := `SELECT seq, transaction_id, amount, kind, occurred_date::text, occurred_time::text,
		COALESCE(from_account, ''), COALESCE(to_account, ''), owner_user_id
		FROM transactions WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY occurred_date DESC, occurred_time DESC, seq DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := tx.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence("querying transactions", err)
	}
	defer rows.Close()

	var out []model.TransactionRecord
	for rows.Next() {
		var (
			rec        model.TransactionRecord
			kind       string
			day, clock string
		)
		if err := rows.Scan(&rec.Seq, &rec.ID, &rec.Amount, &kind, &day, &clock,
			&rec.FromAccount, &rec.ToAccount, &rec.OwnerUserID); err != nil {
			return nil, persistence("scanning transaction", err)
		}
		if rec.Kind, err = model.ParseKind(kind); err != nil {
			return nil, persistence("scanning transaction", err)
		}
		if rec.OccurredAt, err = time.Parse(dateLayout+" "+timeLayout, day+" "+clock); err != nil {
			return nil, persistence("parsing occurred_at", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("iterating transactions", err)
	}
	return out, nil
}
