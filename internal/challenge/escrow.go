package challenge

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
)

// Escrow calcula stakes e movimenta o dinheiro do desafio pelo Ledger
type Escrow struct {
	ledger        *ledger.Ledger
	stakeFraction decimal.Decimal
	rewardRatio   decimal.Decimal
	adminUserID   string
}

// NewEscrow cria o gerenciador de escrow. A taxa do admin é o que sobra de rewardRatio.
func NewEscrow(l *ledger.Ledger, stakeFraction, rewardRatio decimal.Decimal, adminUserID string) *Escrow {
	return &Escrow{ledger: l, stakeFraction: stakeFraction, rewardRatio: rewardRatio, adminUserID: adminUserID}
}

// RequiredStake é quanto cada participante financia ao entrar
func (e *Escrow) RequiredStake(c *Challenge) decimal.Decimal {
	return c.Stake.Mul(e.stakeFraction).Round(2)
}

// Pool soma as contribuições registradas de todos os participantes
func (e *Escrow) Pool(c *Challenge) decimal.Decimal {
	total := decimal.Zero
	for _, p := range c.Participants() {
		total = total.Add(p.FundsDeducted)
	}
	return total
}

// Split divide o pool entre prêmio e taxa. prêmio + taxa == pool sempre.
func (e *Escrow) Split(pool decimal.Decimal) (reward, fee decimal.Decimal) {
	reward = pool.Mul(e.rewardRatio).Round(2)
	return reward, pool.Sub(reward)
}

// Fund debita a parte do participante e registra a contribuição
func (e *Escrow) Fund(ctx context.Context, tx ledger.Store, c *Challenge, p *Participant) error {
	amount := e.RequiredStake(c)
	if _, err := e.ledger.Debit(ctx, tx, ledger.Request{
		UserID:         p.UID,
		Amount:         amount,
		Type:           ledger.TypeChallengeDeduction,
		Reference:      c.ID,
		Description:    fmt.Sprintf("stake for challenge %s (%s)", c.ID, c.Game),
		IdempotencyKey: "challenge:" + c.ID + ":deduction:" + p.UID,
	}); err != nil {
		return err
	}
	p.FundsDeducted = amount
	return nil
}

// Payout paga o vencedor e a taxa do admin. Protegido por RewardClaimed.
func (e *Escrow) Payout(ctx context.Context, tx ledger.Store, c *Challenge, winner *Participant, path Path, now time.Time) (*Settlement, error) {
	if c.RewardClaimed {
		return nil, ErrAlreadySettled
	}
	pool := e.Pool(c)
	reward, fee := e.Split(pool)

	if reward.IsPositive() {
		if _, err := e.ledger.Credit(ctx, tx, ledger.Request{
			UserID:         winner.UID,
			Amount:         reward,
			Type:           ledger.TypeChallengeReward,
			Reference:      c.ID,
			Description:    "challenge reward",
			IdempotencyKey: "challenge:" + c.ID + ":reward",
			Metadata:       map[string]any{"path": string(path)},
		}); err != nil {
			return nil, err
		}
	}
	if fee.IsPositive() {
		if _, err := e.ledger.Credit(ctx, tx, ledger.Request{
			UserID:         e.adminUserID,
			Amount:         fee,
			Type:           ledger.TypeAdminFee,
			Reference:      c.ID,
			Description:    "challenge admin fee",
			IdempotencyKey: "challenge:" + c.ID + ":fee",
		}); err != nil {
			return nil, err
		}
	}

	return &Settlement{
		Outcome:   OutcomeWin,
		Path:      path,
		WinnerUID: winner.UID,
		Pool:      pool,
		Reward:    reward,
		AdminFee:  fee,
		SettledAt: now,
	}, nil
}

// Refund devolve a cada participante exatamente o que foi debitado dele
func (e *Escrow) Refund(ctx context.Context, tx ledger.Store, c *Challenge, outcome Outcome, path Path, now time.Time) (*Settlement, error) {
	if c.RewardClaimed {
		return nil, ErrAlreadySettled
	}
	pool := decimal.Zero
	for _, p := range c.Participants() {
		if !p.FundsDeducted.IsPositive() {
			continue
		}
		pool = pool.Add(p.FundsDeducted)
		if _, err := e.ledger.Credit(ctx, tx, ledger.Request{
			UserID:         p.UID,
			Amount:         p.FundsDeducted,
			Type:           ledger.TypeRefund,
			Reference:      c.ID,
			Description:    fmt.Sprintf("challenge %s refund", outcome),
			IdempotencyKey: "challenge:" + c.ID + ":refund:" + p.UID,
		}); err != nil {
			return nil, err
		}
	}
	return &Settlement{Outcome: outcome, Path: path, Pool: pool, SettledAt: now}, nil
}

// Adjustment é um lançamento emitido ao reliquidar
type Adjustment struct {
	UserID string          `json:"userId"`
	Type   ledger.TxType   `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// Resettle leva os créditos já feitos para o desafio até o alvo da decisão do admin.
// Créditos indevidos são estornados primeiro (admin_adjustment); depois os corretos são pagos.
// A saída total nunca passa do pool.
func (e *Escrow) Resettle(ctx context.Context, tx ledger.Store, c *Challenge, winner *Participant, outcome Outcome, disputeID string, now time.Time) (*Settlement, []Adjustment, error) {
	txs, err := tx.ListTransactionsByReference(ctx, c.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list challenge transactions: %w", err)
	}
	current := ledger.NetByUser(txs,
		ledger.TypeChallengeReward, ledger.TypeAdminFee, ledger.TypeRefund, ledger.TypeAdminAdjustment)

	pool := e.Pool(c)
	target := map[string]decimal.Decimal{}
	creditType := map[string]ledger.TxType{}
	settlement := &Settlement{Outcome: outcome, Path: PathDispute, Pool: pool, SettledAt: now}

	if outcome == OutcomeWin {
		reward, fee := e.Split(pool)
		target[winner.UID] = reward
		creditType[winner.UID] = ledger.TypeChallengeReward
		target[e.adminUserID] = target[e.adminUserID].Add(fee)
		if _, ok := creditType[e.adminUserID]; !ok {
			creditType[e.adminUserID] = ledger.TypeAdminFee
		}
		settlement.WinnerUID = winner.UID
		settlement.Reward = reward
		settlement.AdminFee = fee
	} else {
		for _, p := range c.Participants() {
			target[p.UID] = target[p.UID].Add(p.FundsDeducted)
			creditType[p.UID] = ledger.TypeRefund
		}
	}

	users := make([]string, 0, len(target)+len(current))
	seen := map[string]bool{}
	for u := range target {
		users = append(users, u)
		seen[u] = true
	}
	for u := range current {
		if !seen[u] {
			users = append(users, u)
		}
	}
	sort.Strings(users)

	var adjustments []Adjustment

	// estornos primeiro
	for _, u := range users {
		delta := target[u].Sub(current[u])
		if !delta.IsNegative() {
			continue
		}
		if _, err := e.ledger.Debit(ctx, tx, ledger.Request{
			UserID:         u,
			Amount:         delta.Neg(),
			Type:           ledger.TypeAdminAdjustment,
			Reference:      c.ID,
			Description:    "reversal of prior challenge credit",
			IdempotencyKey: "dispute:" + disputeID + ":reversal:" + u,
			Metadata:       map[string]any{"disputeId": disputeID},
			AllowNegative:  true,
		}); err != nil {
			return nil, nil, err
		}
		adjustments = append(adjustments, Adjustment{UserID: u, Type: ledger.TypeAdminAdjustment, Amount: delta})
	}

	for _, u := range users {
		delta := target[u].Sub(current[u])
		if !delta.IsPositive() {
			continue
		}
		t := creditType[u]
		if _, err := e.ledger.Credit(ctx, tx, ledger.Request{
			UserID:         u,
			Amount:         delta,
			Type:           t,
			Reference:      c.ID,
			Description:    "dispute resolution",
			IdempotencyKey: "dispute:" + disputeID + ":" + string(t) + ":" + u,
			Metadata:       map[string]any{"disputeId": disputeID},
		}); err != nil {
			return nil, nil, err
		}
		adjustments = append(adjustments, Adjustment{UserID: u, Type: t, Amount: delta})
	}

	return settlement, adjustments, nil
}
