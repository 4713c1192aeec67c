package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store é a visão transacional mínima que o Ledger precisa.
// Todas as chamadas acontecem dentro da mesma transação do chamador.
type Store interface {
	// LockWallet lê a carteira com lock de linha (SELECT ... FOR UPDATE).
	// Retorna ErrWalletNotFound se não existir.
	LockWallet(ctx context.Context, userID string) (*Wallet, error)
	CreateWallet(ctx context.Context, w *Wallet) error
	UpdateWalletBalance(ctx context.Context, walletID string, balance decimal.Decimal) error
	InsertTransaction(ctx context.Context, t *Transaction) error
	// FindTransactionByKey retorna nil, nil quando a chave não existe
	FindTransactionByKey(ctx context.Context, key string) (*Transaction, error)
	ListTransactionsByReference(ctx context.Context, reference string) ([]Transaction, error)
	// LockReference serializa as transações sobre a mesma referência até o commit
	LockReference(ctx context.Context, reference string) error
}

// Ledger aplica créditos e débitos sobre carteiras.
// Toda movimentação de saldo passa por aqui.
type Ledger struct {
	defaultBalance decimal.Decimal
	now            func() time.Time
}

// New cria um Ledger. defaultBalance é o saldo inicial de carteiras criadas sob demanda.
func New(defaultBalance decimal.Decimal) *Ledger {
	return &Ledger{defaultBalance: defaultBalance, now: time.Now}
}

// WithClock troca o relógio (usado em testes)
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Wallet retorna a carteira do usuário travada para escrita, criando-a se necessário.
// O saldo inicial vira um lançamento de depósito para manter soma(lançamentos) == saldo.
func (l *Ledger) Wallet(ctx context.Context, s Store, userID string) (*Wallet, error) {
	w, err := s.LockWallet(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	now := l.now().UTC()
	w = &Wallet{
		ID:        uuid.New().String(),
		UserID:    userID,
		Balance:   decimal.Zero,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateWallet(ctx, w); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	if l.defaultBalance.IsPositive() {
		if _, err := l.apply(ctx, s, w, Request{
			UserID:         userID,
			Amount:         l.defaultBalance,
			Type:           TypeDeposit,
			Description:    "opening balance",
			IdempotencyKey: "opening:" + userID,
		}, l.defaultBalance); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Credit soma amount ao saldo e grava o lançamento
func (l *Ledger) Credit(ctx context.Context, s Store, req Request) (*Result, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, req.Amount)
	}
	w, err := l.Wallet(ctx, s, req.UserID)
	if err != nil {
		return nil, err
	}
	if res, ok, err := l.replay(ctx, s, w, req); ok || err != nil {
		return res, err
	}
	return l.apply(ctx, s, w, req, req.Amount)
}

// Debit subtrai amount do saldo. Falha com ErrInsufficientFunds se balance < amount,
// exceto em estornos administrativos com AllowNegative.
func (l *Ledger) Debit(ctx context.Context, s Store, req Request) (*Result, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, req.Amount)
	}
	if req.AllowNegative && req.Type != TypeAdminAdjustment {
		return nil, ErrNegativeBalance
	}
	w, err := l.Wallet(ctx, s, req.UserID)
	if err != nil {
		return nil, err
	}
	if res, ok, err := l.replay(ctx, s, w, req); ok || err != nil {
		return res, err
	}
	if w.Balance.LessThan(req.Amount) && !req.AllowNegative {
		return nil, fmt.Errorf("%w: balance %s, required %s", ErrInsufficientFunds, w.Balance.StringFixed(2), req.Amount.StringFixed(2))
	}
	return l.apply(ctx, s, w, req, req.Amount.Neg())
}

// replay devolve o lançamento já gravado para a mesma chave de idempotência.
// Roda com a carteira já travada, então duas chamadas concorrentes não gravam duas vezes.
func (l *Ledger) replay(ctx context.Context, s Store, w *Wallet, req Request) (*Result, bool, error) {
	if req.IdempotencyKey == "" {
		return nil, false, nil
	}
	existing, err := s.FindTransactionByKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("find transaction: %w", err)
	}
	if existing == nil {
		return nil, false, nil
	}
	if existing.UserID != w.UserID || existing.Type != req.Type {
		return nil, false, fmt.Errorf("idempotency key %q reused for a different operation", req.IdempotencyKey)
	}
	return &Result{Transaction: existing, Balance: w.Balance, Replayed: true}, true, nil
}

// apply atualiza saldo e grava o lançamento na mesma transação
func (l *Ledger) apply(ctx context.Context, s Store, w *Wallet, req Request, signed decimal.Decimal) (*Result, error) {
	newBalance := w.Balance.Add(signed)
	if err := s.UpdateWalletBalance(ctx, w.ID, newBalance); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	t := &Transaction{
		ID:             uuid.New().String(),
		WalletID:       w.ID,
		UserID:         w.UserID,
		Type:           req.Type,
		Amount:         signed,
		BalanceAfter:   newBalance,
		Description:    req.Description,
		Status:         StatusCompleted,
		Reference:      req.Reference,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
		CreatedAt:      l.now().UTC(),
	}
	if err := s.InsertTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	w.Balance = newBalance
	w.Version++
	w.UpdatedAt = t.CreatedAt
	return &Result{Transaction: t, Balance: newBalance}, nil
}

// NetByUser soma, por usuário, os lançamentos de uma referência filtrando pelos tipos informados.
// Sem tipos, considera todos.
func NetByUser(txs []Transaction, types ...TxType) map[string]decimal.Decimal {
	allowed := make(map[TxType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	out := make(map[string]decimal.Decimal)
	for _, t := range txs {
		if len(allowed) > 0 && !allowed[t.Type] {
			continue
		}
		out[t.UserID] = out[t.UserID].Add(t.Amount)
	}
	return out
}

// Sum soma os valores (com sinal) dos lançamentos
func Sum(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}
