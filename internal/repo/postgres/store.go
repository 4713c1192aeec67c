package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/radieske/challenge-settlement-platform/internal/challenge"
	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/internal/wallet"
)

//go:embed schema.sql
var schema string

// Store implementa a persistência de carteiras, ledger, desafios, disputas e repasses.
// Cada InTx é uma transação SQL; linhas alteradas são lidas com FOR UPDATE.
type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

// Migrate cria as tabelas se ainda não existirem
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Tx envolve *sql.Tx com as operações do domínio
type Tx struct{ tx *sql.Tx }

func (s *Store) begin(ctx context.Context, fn func(t *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// InTx implementa challenge.Store
func (s *Store) InTx(ctx context.Context, fn func(tx challenge.Tx) error) error {
	return s.begin(ctx, func(t *Tx) error { return fn(t) })
}

// InWalletTx implementa wallet.Store
func (s *Store) InWalletTx(ctx context.Context, fn func(tx wallet.Tx) error) error {
	return s.begin(ctx, func(t *Tx) error { return fn(t) })
}

// InLedgerTx é usado pelo módulo de torneios
func (s *Store) InLedgerTx(ctx context.Context, fn func(tx ledger.Store) error) error {
	return s.begin(ctx, func(t *Tx) error { return fn(t) })
}
