package challenge

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

// DisputeRequest abre uma disputa
type DisputeRequest struct {
	UID      string
	Reason   string
	Evidence []string
}

// ResolveRequest é a decisão do admin.
// WinnerUsername só é necessário em opponent_wins com mais de um oponente.
type ResolveRequest struct {
	AdminID        string
	Resolution     Resolution
	WinnerUsername string
	Notes          string
}

var disputable = []Status{StatusScorecardConflict, StatusAIVerificationPending, StatusAIConflict, StatusCompleted}

// requireDisputable também aceita um desafio ativo com prova retida
// (baixa confiança ou vencedor não resolvido), que não tem outra saída.
func requireDisputable(c *Challenge, op string) error {
	if c.Status == StatusActive && len(c.claims(KindProof)) > 0 {
		return nil
	}
	return c.requireStatus(op, disputable...)
}

// RaiseDispute abre uma disputa. Só uma disputa aberta por desafio.
func (e *Engine) RaiseDispute(ctx context.Context, id string, req DisputeRequest) (*Dispute, error) {
	if req.Reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	var d *Dispute
	_, err := e.mutate(ctx, id, change{event: events.ChallengeDisputed, actor: req.UID}, func(tx Tx, c *Challenge) error {
		if err := requireDisputable(c, "raise dispute"); err != nil {
			return err
		}
		if c.ParticipantByUID(req.UID) == nil {
			return fmt.Errorf("%w: not a participant", ErrForbidden)
		}
		open, err := tx.OpenDisputeFor(ctx, c.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return fmt.Errorf("%w: dispute %s already open", ErrDuplicateSubmission, open.ID)
		}
		d = &Dispute{
			ID:          uuid.New().String(),
			ChallengeID: c.ID,
			RaisedBy:    req.UID,
			Reason:      req.Reason,
			Evidence:    req.Evidence,
			Status:      DisputePending,
			CreatedAt:   e.now().UTC(),
		}
		return tx.InsertDispute(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("dispute raised", zap.String("challengeId", id), zap.String("disputeId", d.ID))
	return d, nil
}

// ReviewDispute marca a disputa como em análise
func (e *Engine) ReviewDispute(ctx context.Context, disputeID, adminID, notes string) (*Dispute, error) {
	var d *Dispute
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		d, err = tx.LockDispute(ctx, disputeID)
		if err != nil {
			return err
		}
		if d.Status != DisputePending {
			return fmt.Errorf("%w: dispute is %s", ErrInvalidTransition, d.Status)
		}
		d.Status = DisputeReviewed
		d.ResolvedBy = adminID
		if notes != "" {
			d.AdminNotes = notes
		}
		return tx.UpdateDispute(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ResolveDispute aplica a decisão do admin. Créditos feitos para a parte errada
// são estornados antes do novo pagamento. Repetir a mesma decisão é sucesso.
func (e *Engine) ResolveDispute(ctx context.Context, disputeID string, req ResolveRequest) (*Dispute, *Challenge, error) {
	if !req.Resolution.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown resolution %q", ErrInvalidInput, req.Resolution)
	}
	existing, err := e.store.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}

	var d *Dispute
	c, err := e.mutate(ctx, existing.ChallengeID, change{event: events.ChallengeDisputeResolved, actor: req.AdminID, disputeID: disputeID},
		func(tx Tx, c *Challenge) error {
			var err error
			d, err = tx.LockDispute(ctx, disputeID)
			if err != nil {
				return err
			}
			return e.applyResolution(ctx, tx, c, d, req)
		})
	if errors.Is(err, ErrAlreadySettled) {
		return e.reread(ctx, disputeID, existing.ChallengeID)
	}
	if err != nil {
		return nil, nil, err
	}
	return d, c, nil
}

// ResolveChallenge é a resolução direta do admin (ex.: ai-conflict sem disputa aberta).
// Usa a disputa aberta se houver, senão registra uma em nome do admin.
func (e *Engine) ResolveChallenge(ctx context.Context, challengeID string, req ResolveRequest) (*Dispute, *Challenge, error) {
	if !req.Resolution.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown resolution %q", ErrInvalidInput, req.Resolution)
	}
	var d *Dispute
	c, err := e.mutate(ctx, challengeID, change{event: events.ChallengeDisputeResolved, actor: req.AdminID},
		func(tx Tx, c *Challenge) error {
			var err error
			d, err = tx.OpenDisputeFor(ctx, c.ID)
			if err != nil {
				return err
			}
			if d == nil {
				d = &Dispute{
					ID:          uuid.New().String(),
					ChallengeID: c.ID,
					RaisedBy:    req.AdminID,
					Reason:      "admin review",
					Status:      DisputeReviewed,
					CreatedAt:   e.now().UTC(),
				}
				if err := tx.InsertDispute(ctx, d); err != nil {
					return err
				}
			}
			return e.applyResolution(ctx, tx, c, d, req)
		})
	if err != nil {
		return nil, nil, err
	}
	return d, c, nil
}

func (e *Engine) reread(ctx context.Context, disputeID, challengeID string) (*Dispute, *Challenge, error) {
	d, err := e.store.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, nil, err
	}
	c, err := e.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, nil, err
	}
	return d, c, nil
}

func (e *Engine) applyResolution(ctx context.Context, tx Tx, c *Challenge, d *Dispute, req ResolveRequest) error {
	if d.Status == DisputeResolved {
		if d.Resolution == req.Resolution {
			return ErrAlreadySettled
		}
		return fmt.Errorf("%w: dispute already resolved as %s", ErrInvalidTransition, d.Resolution)
	}
	if err := requireDisputable(c, "resolve dispute"); err != nil {
		return err
	}

	var (
		winner  *Participant
		outcome Outcome
	)
	switch req.Resolution {
	case ResolutionChallengerWins:
		winner, outcome = &c.Challenger, OutcomeWin
	case ResolutionOpponentWins:
		w, err := pickOpponent(c, req.WinnerUsername)
		if err != nil {
			return err
		}
		winner, outcome = w, OutcomeWin
	case ResolutionSplit:
		outcome = OutcomeSplit
	case ResolutionRefund:
		outcome = OutcomeRefund
	}

	now := e.now().UTC()
	s, adjustments, err := e.escrow.Resettle(ctx, tx, c, winner, outcome, d.ID, now)
	if err != nil {
		return err
	}
	if c.Status != StatusCompleted {
		if err := c.transition(StatusCompleted, PathDispute); err != nil {
			return err
		}
	}

	c.Settlement = s
	c.RewardClaimed = true
	c.Resolution = string(req.Resolution)
	c.SettlementError = ""
	if winner != nil {
		name := winner.Username
		c.Winner = &name
		c.WinnerUID = winner.UID
	} else {
		c.Winner = nil
		c.WinnerUID = ""
	}

	d.Status = DisputeResolved
	d.Resolution = req.Resolution
	d.ResolvedBy = req.AdminID
	d.ResolvedAt = &now
	if req.Notes != "" {
		d.AdminNotes = req.Notes
	}
	if err := tx.UpdateDispute(ctx, d); err != nil {
		return err
	}

	for _, a := range adjustments {
		if a.Type == ledger.TypeAdminAdjustment {
			e.m.Reversals.Inc()
		}
		e.log.Info("dispute adjustment",
			zap.String("challengeId", c.ID),
			zap.String("disputeId", d.ID),
			zap.String("user", a.UserID),
			zap.String("type", string(a.Type)),
			zap.String("amount", a.Amount.StringFixed(2)),
		)
	}
	e.m.Settlements.WithLabelValues(string(PathDispute), string(outcome)).Inc()
	return nil
}

func pickOpponent(c *Challenge, username string) (*Participant, error) {
	opps := c.FundedOpponents()
	if username == "" {
		if len(opps) != 1 {
			return nil, fmt.Errorf("%w: winner username required with %d opponents", ErrInvalidInput, len(opps))
		}
		return &opps[0].Participant, nil
	}
	for _, o := range opps {
		if Normalize(o.Username) == Normalize(username) {
			return &o.Participant, nil
		}
	}
	return nil, fmt.Errorf("%w: %q is not a funded opponent", ErrWinnerUnresolved, username)
}

// ListDisputes lista disputas por status (vazio = todas)
func (e *Engine) ListDisputes(ctx context.Context, status DisputeStatus) ([]Dispute, error) {
	return e.store.ListDisputes(ctx, status)
}

// ClaimReward devolve a liquidação registrada. O pagamento acontece na resolução
// (payWinner), então repetir a chamada nunca credita de novo.
func (e *Engine) ClaimReward(ctx context.Context, id, uid string) (*Settlement, error) {
	c, _, err := e.CheckDeadlines(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ParticipantByUID(uid) == nil {
		return nil, fmt.Errorf("%w: not a participant", ErrForbidden)
	}
	if c.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: challenge is %s, not settled", ErrInvalidTransition, c.Status)
	}

	if !c.RewardClaimed || c.Settlement == nil {
		return nil, fmt.Errorf("challenge %s completed without settlement", id)
	}
	return c.Settlement, nil
}
