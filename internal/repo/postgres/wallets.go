package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
)

const walletCols = `id, user_id, balance, version, created_at, updated_at`

const txCols = `id, wallet_id, user_id, type, amount, balance_after, description, status, reference,
	COALESCE(idempotency_key, ''), metadata, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(r rowScanner) (*ledger.Wallet, error) {
	var w ledger.Wallet
	if err := r.Scan(&w.ID, &w.UserID, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

func scanTransaction(r rowScanner) (*ledger.Transaction, error) {
	var (
		t    ledger.Transaction
		meta []byte
	)
	if err := r.Scan(&t.ID, &t.WalletID, &t.UserID, &t.Type, &t.Amount, &t.BalanceAfter,
		&t.Description, &t.Status, &t.Reference, &t.IdempotencyKey, &meta, &t.CreatedAt); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

// LockWallet lê a carteira com lock pessimista na linha
func (t *Tx) LockWallet(ctx context.Context, userID string) (*ledger.Wallet, error) {
	return scanWallet(t.tx.QueryRowContext(ctx,
		`SELECT `+walletCols+` FROM wallets WHERE user_id=$1 FOR UPDATE`, userID))
}

func (t *Tx) CreateWallet(ctx context.Context, w *ledger.Wallet) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO wallets(id, user_id, balance, version, created_at, updated_at) VALUES($1,$2,$3,$4,$5,$6)`,
		w.ID, w.UserID, w.Balance, w.Version, w.CreatedAt, w.UpdatedAt)
	return err
}

func (t *Tx) UpdateWalletBalance(ctx context.Context, walletID string, balance decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE wallets SET balance=$1, version=version+1, updated_at=NOW() WHERE id=$2`, balance, walletID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrWalletNotFound
	}
	return nil
}

func (t *Tx) InsertTransaction(ctx context.Context, tr *ledger.Transaction) error {
	var meta []byte
	if tr.Metadata != nil {
		b, err := json.Marshal(tr.Metadata)
		if err != nil {
			return err
		}
		meta = b
	}
	key := sql.NullString{String: tr.IdempotencyKey, Valid: tr.IdempotencyKey != ""}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions
		  (id, wallet_id, user_id, type, amount, balance_after, description, status, reference, idempotency_key, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		tr.ID, tr.WalletID, tr.UserID, tr.Type, tr.Amount, tr.BalanceAfter, tr.Description,
		tr.Status, tr.Reference, key, meta, tr.CreatedAt)
	return err
}

func (t *Tx) FindTransactionByKey(ctx context.Context, key string) (*ledger.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRowContext(ctx,
		`SELECT `+txCols+` FROM ledger_transactions WHERE idempotency_key=$1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return tr, err
}

func (t *Tx) ListTransactionsByReference(ctx context.Context, reference string) ([]ledger.Transaction, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+txCols+` FROM ledger_transactions WHERE reference=$1 ORDER BY created_at, id`, reference)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// LockReference usa um advisory lock de transação, liberado no commit ou rollback
func (t *Tx) LockReference(ctx context.Context, reference string) error {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, reference); err != nil {
		return fmt.Errorf("lock reference %s: %w", reference, err)
	}
	return nil
}

func collectTransactions(rows *sql.Rows) ([]ledger.Transaction, error) {
	defer rows.Close()
	var out []ledger.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tr)
	}
	return out, rows.Err()
}

// GetWallet lê sem lock (consulta de saldo)
func (s *Store) GetWallet(ctx context.Context, userID string) (*ledger.Wallet, error) {
	return scanWallet(s.db.QueryRowContext(ctx, `SELECT `+walletCols+` FROM wallets WHERE user_id=$1`, userID))
}

// ListTransactions lista os lançamentos mais recentes do usuário
func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+txCols+` FROM ledger_transactions WHERE user_id=$1 ORDER BY created_at DESC, id LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}
