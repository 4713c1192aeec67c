// Package tournament movimenta inscrições e prêmios de torneios usando os
// mesmos lançamentos do ledger dos desafios. A chave de cada lançamento inclui
// o torneio e o usuário, então repetir uma chamada não cobra nem paga duas vezes.
package tournament

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
)

var (
	ErrClosed             = errors.New("tournament is closed")
	ErrAlreadyDistributed = errors.New("tournament rewards already distributed")
	ErrNoEntries          = errors.New("tournament has no entries")
	ErrInvalidPlacements  = errors.New("invalid placements")
	ErrInvalidRatio       = errors.New("invalid reward ratio")
)

// Store abre a transação de ledger
type Store interface {
	InLedgerTx(ctx context.Context, fn func(tx ledger.Store) error) error
}

// Placement é a fatia do prêmio de um colocado; as fatias somam 1
type Placement struct {
	UserID string          `json:"userId"`
	Share  decimal.Decimal `json:"share"`
}

// Distribution resume uma premiação
type Distribution struct {
	TournamentID string                     `json:"tournamentId"`
	Pool         decimal.Decimal            `json:"pool"`
	Rewards      map[string]decimal.Decimal `json:"rewards"`
	AdminFee     decimal.Decimal            `json:"adminFee"`
}

type Service struct {
	log          *zap.Logger
	store        Store
	ledger       *ledger.Ledger
	adminUserID  string
	defaultRatio decimal.Decimal
}

func NewService(log *zap.Logger, store Store, l *ledger.Ledger, adminUserID string, ratio decimal.Decimal) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log, store: store, ledger: l, adminUserID: adminUserID, defaultRatio: ratio}
}

func entryKey(tid, uid string) string  { return "tournament:" + tid + ":entry:" + uid }
func rewardKey(tid, uid string) string { return "tournament:" + tid + ":reward:" + uid }
func refundKey(tid, uid string) string { return "tournament:" + tid + ":refund:" + uid }
func feeKey(tid string) string         { return "tournament:" + tid + ":fee" }

// snapshot são os lançamentos do torneio lidos dentro da transação
type snapshot struct {
	entries     map[string]decimal.Decimal // valor pago por usuário (positivo)
	order       []string
	distributed bool
	cancelled   bool
}

// load trava o torneio antes de ler, então inscrição, premiação e cancelamento
// concorrentes nunca decidem sobre o mesmo snapshot
func load(ctx context.Context, tx ledger.Store, tid string) (*snapshot, error) {
	if err := tx.LockReference(ctx, "tournament:"+tid); err != nil {
		return nil, err
	}
	txs, err := tx.ListTransactionsByReference(ctx, tid)
	if err != nil {
		return nil, fmt.Errorf("list tournament transactions: %w", err)
	}
	s := &snapshot{entries: map[string]decimal.Decimal{}}
	for _, t := range txs {
		switch t.Type {
		case ledger.TypeTournamentEntry:
			if _, ok := s.entries[t.UserID]; !ok {
				s.order = append(s.order, t.UserID)
			}
			s.entries[t.UserID] = s.entries[t.UserID].Add(t.Amount.Neg())
		case ledger.TypeTournamentReward:
			s.distributed = true
		case ledger.TypeTournamentRefund:
			s.cancelled = true
		}
	}
	return s, nil
}

func (s *snapshot) pool() decimal.Decimal {
	total := decimal.Zero
	for _, v := range s.entries {
		total = total.Add(v)
	}
	return total
}

// Enter debita a inscrição. Repetir a inscrição do mesmo usuário devolve o lançamento original.
func (s *Service) Enter(ctx context.Context, tournamentID, userID string, fee decimal.Decimal) (*ledger.Result, error) {
	if tournamentID == "" || userID == "" {
		return nil, fmt.Errorf("%w: tournament and user are required", ErrInvalidPlacements)
	}
	var res *ledger.Result
	err := s.store.InLedgerTx(ctx, func(tx ledger.Store) error {
		snap, err := load(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if snap.distributed || snap.cancelled {
			return ErrClosed
		}
		res, err = s.ledger.Debit(ctx, tx, ledger.Request{
			UserID:         userID,
			Amount:         fee,
			Type:           ledger.TypeTournamentEntry,
			Reference:      tournamentID,
			Description:    "tournament entry fee",
			IdempotencyKey: entryKey(tournamentID, userID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if !res.Replayed {
		s.log.Info("tournament entry",
			zap.String("tournament_id", tournamentID),
			zap.String("user_id", userID),
			zap.String("fee", fee.StringFixed(2)))
	}
	return res, nil
}

// Distribute paga os colocados com ratio do pool de inscrições e credita o resto ao admin.
// ratio zero usa o padrão configurado.
func (s *Service) Distribute(ctx context.Context, tournamentID string, placements []Placement, ratio decimal.Decimal) (*Distribution, error) {
	if ratio.IsZero() {
		ratio = s.defaultRatio
	}
	if !ratio.IsPositive() || ratio.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRatio, ratio)
	}
	if err := validatePlacements(placements); err != nil {
		return nil, err
	}

	var out *Distribution
	err := s.store.InLedgerTx(ctx, func(tx ledger.Store) error {
		snap, err := load(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		switch {
		case snap.distributed:
			return ErrAlreadyDistributed
		case snap.cancelled:
			return ErrClosed
		}
		pool := snap.pool()
		if !pool.IsPositive() {
			return ErrNoEntries
		}
		for _, p := range placements {
			if _, ok := snap.entries[p.UserID]; !ok {
				return fmt.Errorf("%w: %s did not enter", ErrInvalidPlacements, p.UserID)
			}
		}

		rewards := splitRewards(pool.Mul(ratio).Round(2), placements)
		out = &Distribution{
			TournamentID: tournamentID,
			Pool:         pool,
			Rewards:      rewards,
			AdminFee:     pool,
		}
		for _, p := range placements {
			amount := rewards[p.UserID]
			out.AdminFee = out.AdminFee.Sub(amount)
			if !amount.IsPositive() {
				continue
			}
			if _, err := s.ledger.Credit(ctx, tx, ledger.Request{
				UserID:         p.UserID,
				Amount:         amount,
				Type:           ledger.TypeTournamentReward,
				Reference:      tournamentID,
				Description:    "tournament reward",
				IdempotencyKey: rewardKey(tournamentID, p.UserID),
				Metadata:       map[string]any{"share": p.Share.String()},
			}); err != nil {
				return err
			}
		}
		if out.AdminFee.IsPositive() {
			_, err := s.ledger.Credit(ctx, tx, ledger.Request{
				UserID:         s.adminUserID,
				Amount:         out.AdminFee,
				Type:           ledger.TypeAdminFee,
				Reference:      tournamentID,
				Description:    "tournament admin fee",
				IdempotencyKey: feeKey(tournamentID),
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("tournament distributed",
		zap.String("tournament_id", tournamentID),
		zap.String("pool", out.Pool.StringFixed(2)),
		zap.String("admin_fee", out.AdminFee.StringFixed(2)))
	return out, nil
}

// Cancel devolve a cada inscrito exatamente o que ele pagou
func (s *Service) Cancel(ctx context.Context, tournamentID string) (map[string]decimal.Decimal, error) {
	refunds := map[string]decimal.Decimal{}
	err := s.store.InLedgerTx(ctx, func(tx ledger.Store) error {
		snap, err := load(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if snap.distributed {
			return ErrAlreadyDistributed
		}
		for _, uid := range snap.order {
			amount := snap.entries[uid]
			if !amount.IsPositive() {
				continue
			}
			if _, err := s.ledger.Credit(ctx, tx, ledger.Request{
				UserID:         uid,
				Amount:         amount,
				Type:           ledger.TypeTournamentRefund,
				Reference:      tournamentID,
				Description:    "tournament cancelled",
				IdempotencyKey: refundKey(tournamentID, uid),
			}); err != nil {
				return err
			}
			refunds[uid] = amount
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("tournament cancelled", zap.String("tournament_id", tournamentID), zap.Int("refunds", len(refunds)))
	return refunds, nil
}

func validatePlacements(placements []Placement) error {
	if len(placements) == 0 {
		return fmt.Errorf("%w: at least one placement is required", ErrInvalidPlacements)
	}
	seen := map[string]bool{}
	total := decimal.Zero
	for _, p := range placements {
		if p.UserID == "" || !p.Share.IsPositive() {
			return fmt.Errorf("%w: user and positive share are required", ErrInvalidPlacements)
		}
		if seen[p.UserID] {
			return fmt.Errorf("%w: %s placed twice", ErrInvalidPlacements, p.UserID)
		}
		seen[p.UserID] = true
		total = total.Add(p.Share)
	}
	if !total.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: shares sum to %s", ErrInvalidPlacements, total)
	}
	return nil
}

// splitRewards arredonda cada fatia para baixo; o último colocado da lista leva os centavos
// que sobrarem, então a soma é sempre igual ao prêmio total.
func splitRewards(total decimal.Decimal, placements []Placement) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(placements))
	left := total
	for i, p := range placements {
		if i == len(placements)-1 {
			out[p.UserID] = left
			break
		}
		amount := total.Mul(p.Share).RoundDown(2)
		out[p.UserID] = amount
		left = left.Sub(amount)
	}
	return out
}
