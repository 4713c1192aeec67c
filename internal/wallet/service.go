package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

var (
	ErrPayoutNotFound   = errors.New("payout not found")
	ErrInvalidAmount    = ledger.ErrInvalidAmount
	ErrGateway          = errors.New("payment gateway unavailable")
	ErrDuplicateRequest = errors.New("duplicate withdrawal request")
)

// Tx é a transação usada em saques: débito no ledger e registro do repasse juntos
type Tx interface {
	ledger.Store
	InsertPayout(ctx context.Context, p *Payout) error
}

// Store é a persistência da carteira
type Store interface {
	InWalletTx(ctx context.Context, fn func(tx Tx) error) error
	GetWallet(ctx context.Context, userID string) (*ledger.Wallet, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]ledger.Transaction, error)
	GetPayout(ctx context.Context, id string) (*Payout, error)
	UpdatePayout(ctx context.Context, p *Payout) error
}

// WithdrawalPublisher envia o pedido de repasse para o payout-worker
type WithdrawalPublisher interface {
	PublishWithdrawal(ctx context.Context, ev events.WithdrawalRequested) error
}

// Service expõe as operações de carteira do usuário
type Service struct {
	log     *zap.Logger
	store   Store
	ledger  *ledger.Ledger
	gateway Gateway
	publ    WithdrawalPublisher
	now     func() time.Time
}

// NewService cria o serviço de carteira
func NewService(log *zap.Logger, store Store, l *ledger.Ledger, gw Gateway, publ WithdrawalPublisher) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log, store: store, ledger: l, gateway: gw, publ: publ, now: time.Now}
}

// validAmount aceita só valores positivos em centavos; NUMERIC(18,2) arredondaria o resto
func validAmount(a decimal.Decimal) bool {
	return a.IsPositive() && a.Equal(a.Truncate(2))
}

// Balance retorna a carteira, criando-a com o saldo padrão no primeiro acesso
func (s *Service) Balance(ctx context.Context, userID string) (*ledger.Wallet, error) {
	w, err := s.store.GetWallet(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ledger.ErrWalletNotFound) {
		return nil, err
	}
	err = s.store.InWalletTx(ctx, func(tx Tx) error {
		w, err = s.ledger.Wallet(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// History lista os lançamentos mais recentes do usuário
func (s *Service) History(ctx context.Context, userID string, limit int) ([]ledger.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListTransactions(ctx, userID, limit)
}

// Deposit cobra pelo gateway e credita no ledger com o externalId como chave de idempotência
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal, metadata map[string]any) (*ledger.Result, error) {
	if userID == "" || !validAmount(amount) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	externalID, err := s.gateway.Deposit(ctx, userID, amount, metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	md := map[string]any{"externalId": externalID}
	for k, v := range metadata {
		md[k] = v
	}

	var res *ledger.Result
	err = s.store.InWalletTx(ctx, func(tx Tx) error {
		var err error
		res, err = s.ledger.Credit(ctx, tx, ledger.Request{
			UserID:         userID,
			Amount:         amount,
			Type:           ledger.TypeDeposit,
			Description:    "deposit",
			IdempotencyKey: "deposit:" + externalID,
			Metadata:       md,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("deposit credited",
		zap.String("userId", userID), zap.String("amount", amount.StringFixed(2)), zap.String("externalId", externalID))
	return res, nil
}

// Withdraw debita o saldo e registra o repasse pendente na mesma transação.
// requestID (opcional) torna o pedido idempotente.
func (s *Service) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, destination, requestID string) (*Payout, error) {
	if userID == "" || destination == "" || !validAmount(amount) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	key := ""
	if requestID != "" {
		key = "withdrawal:" + userID + ":" + requestID
	}

	now := s.now().UTC()
	var p *Payout
	err := s.store.InWalletTx(ctx, func(tx Tx) error {
		res, err := s.ledger.Debit(ctx, tx, ledger.Request{
			UserID:         userID,
			Amount:         amount,
			Type:           ledger.TypeWithdrawal,
			Description:    "withdrawal to " + destination,
			IdempotencyKey: key,
			Metadata:       map[string]any{"destination": destination},
		})
		if err != nil {
			return err
		}
		p = &Payout{
			ID:            uuid.New().String(),
			TransactionID: res.Transaction.ID,
			UserID:        userID,
			Amount:        amount,
			Destination:   destination,
			Status:        PayoutPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if res.Replayed {
			// pedido repetido: o repasse já foi registrado na primeira chamada
			p = nil
			return nil
		}
		return tx.InsertPayout(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRequest, requestID)
	}

	if s.publ != nil {
		if err := s.publ.PublishWithdrawal(ctx, events.WithdrawalRequested{
			PayoutID:      p.ID,
			TransactionID: p.TransactionID,
			UserID:        userID,
			Amount:        amount.String(),
			Destination:   destination,
			RequestedAt:   now,
		}); err != nil {
			s.log.Warn("publish withdrawal failed, payout stays pending", zap.String("payoutId", p.ID), zap.Error(err))
		}
	}
	return p, nil
}
