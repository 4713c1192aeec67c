package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/challenge-settlement-platform/internal/challenge"
	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/internal/wallet"
)

// Store guarda tudo em memória. Uma transação trabalha numa cópia do estado
// e só substitui o original no commit, então erros desfazem tudo.
type Store struct {
	mu sync.Mutex
	st *state
}

type state struct {
	wallets    map[string]ledger.Wallet // por userID
	txs        []ledger.Transaction
	keys       map[string]int
	challenges map[string][]byte // documento JSON
	disputes   map[string]challenge.Dispute
	payouts    map[string]wallet.Payout
}

func New() *Store {
	return &Store{st: &state{
		wallets:    map[string]ledger.Wallet{},
		keys:       map[string]int{},
		challenges: map[string][]byte{},
		disputes:   map[string]challenge.Dispute{},
		payouts:    map[string]wallet.Payout{},
	}}
}

func (s *state) clone() *state {
	out := &state{
		wallets:    make(map[string]ledger.Wallet, len(s.wallets)),
		txs:        append([]ledger.Transaction(nil), s.txs...),
		keys:       make(map[string]int, len(s.keys)),
		challenges: make(map[string][]byte, len(s.challenges)),
		disputes:   make(map[string]challenge.Dispute, len(s.disputes)),
		payouts:    make(map[string]wallet.Payout, len(s.payouts)),
	}
	for k, v := range s.wallets {
		out.wallets[k] = v
	}
	for k, v := range s.keys {
		out.keys[k] = v
	}
	for k, v := range s.challenges {
		out.challenges[k] = v
	}
	for k, v := range s.disputes {
		out.disputes[k] = v
	}
	for k, v := range s.payouts {
		out.payouts[k] = v
	}
	return out
}

func (s *Store) run(fn func(t *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(&Tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// InTx implementa challenge.Store
func (s *Store) InTx(ctx context.Context, fn func(tx challenge.Tx) error) error {
	return s.run(func(t *Tx) error { return fn(t) })
}

// InWalletTx implementa wallet.Store
func (s *Store) InWalletTx(ctx context.Context, fn func(tx wallet.Tx) error) error {
	return s.run(func(t *Tx) error { return fn(t) })
}

// InLedgerTx é usado pelo módulo de torneios
func (s *Store) InLedgerTx(ctx context.Context, fn func(tx ledger.Store) error) error {
	return s.run(func(t *Tx) error { return fn(t) })
}

// Tx é a visão transacional sobre a cópia do estado
type Tx struct{ st *state }

func (t *Tx) LockWallet(_ context.Context, userID string) (*ledger.Wallet, error) {
	w, ok := t.st.wallets[userID]
	if !ok {
		return nil, ledger.ErrWalletNotFound
	}
	return &w, nil
}

func (t *Tx) CreateWallet(_ context.Context, w *ledger.Wallet) error {
	t.st.wallets[w.UserID] = *w
	return nil
}

func (t *Tx) UpdateWalletBalance(_ context.Context, walletID string, balance decimal.Decimal) error {
	for uid, w := range t.st.wallets {
		if w.ID == walletID {
			w.Balance = balance
			w.Version++
			w.UpdatedAt = time.Now().UTC()
			t.st.wallets[uid] = w
			return nil
		}
	}
	return ledger.ErrWalletNotFound
}

func (t *Tx) InsertTransaction(_ context.Context, tr *ledger.Transaction) error {
	if tr.IdempotencyKey != "" {
		if _, ok := t.st.keys[tr.IdempotencyKey]; ok {
			return errDuplicateKey
		}
		t.st.keys[tr.IdempotencyKey] = len(t.st.txs)
	}
	t.st.txs = append(t.st.txs, *tr)
	return nil
}

func (t *Tx) FindTransactionByKey(_ context.Context, key string) (*ledger.Transaction, error) {
	i, ok := t.st.keys[key]
	if !ok {
		return nil, nil
	}
	tr := t.st.txs[i]
	return &tr, nil
}

func (t *Tx) ListTransactionsByReference(_ context.Context, reference string) ([]ledger.Transaction, error) {
	return byReference(t.st, reference), nil
}

// LockReference não faz nada: o mutex do Store já serializa as transações
func (t *Tx) LockReference(context.Context, string) error { return nil }

func (t *Tx) LockChallenge(_ context.Context, id string) (*challenge.Challenge, error) {
	return decodeChallenge(t.st, id)
}

func (t *Tx) InsertChallenge(_ context.Context, c *challenge.Challenge) error {
	if _, ok := t.st.challenges[c.ID]; ok {
		return errDuplicateKey
	}
	return t.putChallenge(c)
}

func (t *Tx) UpdateChallenge(_ context.Context, c *challenge.Challenge) error {
	if _, ok := t.st.challenges[c.ID]; !ok {
		return challenge.ErrNotFound
	}
	return t.putChallenge(c)
}

func (t *Tx) putChallenge(c *challenge.Challenge) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	t.st.challenges[c.ID] = b
	return nil
}

func (t *Tx) InsertDispute(_ context.Context, d *challenge.Dispute) error {
	t.st.disputes[d.ID] = *d
	return nil
}

func (t *Tx) LockDispute(_ context.Context, id string) (*challenge.Dispute, error) {
	d, ok := t.st.disputes[id]
	if !ok {
		return nil, challenge.ErrNotFound
	}
	return &d, nil
}

func (t *Tx) UpdateDispute(_ context.Context, d *challenge.Dispute) error {
	if _, ok := t.st.disputes[d.ID]; !ok {
		return challenge.ErrNotFound
	}
	t.st.disputes[d.ID] = *d
	return nil
}

func (t *Tx) OpenDisputeFor(_ context.Context, challengeID string) (*challenge.Dispute, error) {
	for _, d := range t.st.disputes {
		if d.ChallengeID == challengeID && d.Status != challenge.DisputeResolved {
			return &d, nil
		}
	}
	return nil, nil
}

func (t *Tx) InsertPayout(_ context.Context, p *wallet.Payout) error {
	t.st.payouts[p.ID] = *p
	return nil
}

// leituras fora de transação

func (s *Store) GetChallenge(_ context.Context, id string) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeChallenge(s.st, id)
}

func (s *Store) ListChallengesDue(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.st.challenges {
		c, err := decodeChallenge(s.st, id)
		if err != nil {
			return nil, err
		}
		if due(c, now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func due(c *challenge.Challenge, now time.Time) bool {
	d := c.NextDeadline()
	return d != nil && !now.Before(*d)
}

func (s *Store) ListChallengesByUser(_ context.Context, uid string, limit int) ([]challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []challenge.Challenge
	for id := range s.st.challenges {
		c, err := decodeChallenge(s.st, id)
		if err != nil {
			return nil, err
		}
		if c.Challenger.UID == uid || c.Opponent(uid) != nil {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListDisputes(_ context.Context, status challenge.DisputeStatus) ([]challenge.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []challenge.Dispute
	for _, d := range s.st.disputes {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetDispute(_ context.Context, id string) (*challenge.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.st.disputes[id]
	if !ok {
		return nil, challenge.ErrNotFound
	}
	return &d, nil
}

func (s *Store) GetWallet(_ context.Context, userID string) (*ledger.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.st.wallets[userID]
	if !ok {
		return nil, ledger.ErrWalletNotFound
	}
	return &w, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, limit int) ([]ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Transaction
	for i := len(s.st.txs) - 1; i >= 0; i-- {
		if s.st.txs[i].UserID == userID {
			out = append(out, s.st.txs[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// TransactionsByReference é usado em testes para conferir o saldo líquido de um desafio
func (s *Store) TransactionsByReference(reference string) []ledger.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return byReference(s.st, reference)
}

func (s *Store) GetPayout(_ context.Context, id string) (*wallet.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.payouts[id]
	if !ok {
		return nil, wallet.ErrPayoutNotFound
	}
	return &p, nil
}

func (s *Store) UpdatePayout(_ context.Context, p *wallet.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.payouts[p.ID]; !ok {
		return wallet.ErrPayoutNotFound
	}
	s.st.payouts[p.ID] = *p
	return nil
}

func byReference(st *state, reference string) []ledger.Transaction {
	var out []ledger.Transaction
	for _, tr := range st.txs {
		if tr.Reference == reference {
			out = append(out, tr)
		}
	}
	return out
}

func decodeChallenge(st *state, id string) (*challenge.Challenge, error) {
	b, ok := st.challenges[id]
	if !ok {
		return nil, challenge.ErrNotFound
	}
	var c challenge.Challenge
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
