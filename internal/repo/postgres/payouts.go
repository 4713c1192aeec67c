package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/radieske/challenge-settlement-platform/internal/wallet"
)

const payoutCols = `id, transaction_id, user_id, amount, destination, status, external_id, attempts, last_error, created_at, updated_at`

func (t *Tx) InsertPayout(ctx context.Context, p *wallet.Payout) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO payouts (`+payoutCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.TransactionID, p.UserID, p.Amount, p.Destination, p.Status,
		p.ExternalID, p.Attempts, p.LastError, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *Store) GetPayout(ctx context.Context, id string) (*wallet.Payout, error) {
	var p wallet.Payout
	err := s.db.QueryRowContext(ctx, `SELECT `+payoutCols+` FROM payouts WHERE id=$1`, id).Scan(
		&p.ID, &p.TransactionID, &p.UserID, &p.Amount, &p.Destination, &p.Status,
		&p.ExternalID, &p.Attempts, &p.LastError, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wallet.ErrPayoutNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePayout registra o resultado do repasse. O lançamento do ledger não muda.
func (s *Store) UpdatePayout(ctx context.Context, p *wallet.Payout) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payouts
		SET status=$2, external_id=$3, attempts=$4, last_error=$5, updated_at=$6
		WHERE id=$1`,
		p.ID, p.Status, p.ExternalID, p.Attempts, p.LastError, p.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return wallet.ErrPayoutNotFound
	}
	return nil
}
