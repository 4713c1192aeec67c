package challenge

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Timer descreve o prazo em curso de um desafio
type Timer struct {
	Kind      string     `json:"kind,omitempty"` // scorecard | verification
	Deadline  *time.Time `json:"deadline,omitempty"`
	Remaining int64      `json:"remainingSeconds"`
	Expired   bool       `json:"expired"`
}

// StatusView é o retorno do polling de status
type StatusView struct {
	Challenge *Challenge `json:"challenge"`
	Timer     Timer      `json:"timer"`
}

// NextDeadline é o prazo que o supervisor observa no status atual. Fica nil
// quando nenhum W.O. pode disparar, para a varredura não revisitar o desafio.
func (c *Challenge) NextDeadline() *time.Time {
	if _, d, ok := soleSubmitter(c); ok {
		return d
	}
	return nil
}

// soleSubmitter devolve o único submissor apto a vencer por W.O. e o prazo que o rege.
// Prova com baixa confiança ou vencedor não resolvido nunca vence por W.O.
func soleSubmitter(c *Challenge) (uid string, deadline *time.Time, ok bool) {
	if c.SettlementError != "" {
		return "", nil, false
	}
	switch c.Status {
	case StatusScorecardPending:
		if len(c.Scorecards) == 1 && c.ScorecardDeadline != nil {
			return c.Scorecards[0].ReporterUID, c.ScorecardDeadline, true
		}
	case StatusAIVerificationPending:
		if claims := c.claims(KindVerification); len(claims) == 1 && c.VerificationDeadline != nil {
			return claims[0].SubmitterUID, c.VerificationDeadline, true
		}
	case StatusActive:
		claims := c.claims(KindProof)
		if len(claims) == 1 && c.VerificationDeadline != nil && !claims[0].RawSignals.LowConfidence {
			return claims[0].SubmitterUID, c.VerificationDeadline, true
		}
	}
	return "", nil, false
}

// pendingSubmitter devolve o único submissor de um prazo vencido, se houver
func pendingSubmitter(c *Challenge, now time.Time) (uid string, due bool) {
	uid, d, ok := soleSubmitter(c)
	if !ok || now.Before(*d) {
		return "", false
	}
	return uid, true
}

// expire aplica W.O.: com o prazo vencido e uma única submissão, o submissor vence.
// Devolve false quando não havia nada a fazer.
func (e *Engine) expire(ctx context.Context, tx Tx, c *Challenge) (bool, error) {
	uid, due := pendingSubmitter(c, e.now().UTC())
	if !due || c.RewardClaimed {
		return false, nil
	}
	w := c.ParticipantByUID(uid)
	if c.Status == StatusActive {
		// a prova retida precisa apontar o próprio submissor
		claimed, err := ResolveWinner(ctx, c, c.claimBy(uid, KindProof).ClaimedWinner, e.dir)
		if errors.Is(err, ErrWinnerUnresolved) || (err == nil && claimed.UID != uid) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	if err := e.payWinner(ctx, tx, c, w, PathForfeit); err != nil {
		return false, err
	}
	e.m.Forfeits.Inc()
	e.log.Info("forfeit applied", zap.String("challengeId", c.ID), zap.String("winner", w.Username))
	return true, nil
}

// CheckDeadlines é a checagem preguiçosa feita na leitura. Repetir é no-op.
func (e *Engine) CheckDeadlines(ctx context.Context, id string) (*Challenge, bool, error) {
	c, err := e.store.GetChallenge(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if _, due := pendingSubmitter(c, e.now().UTC()); !due {
		return c, false, nil
	}

	out, err := e.mutate(ctx, id, change{}, func(tx Tx, c *Challenge) error {
		fired, err := e.expire(ctx, tx, c)
		if err != nil {
			return err
		}
		if !fired {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		c, err := e.store.GetChallenge(ctx, id)
		return c, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Status é o endpoint de polling: aplica prazos vencidos e devolve o timer corrente
func (e *Engine) Status(ctx context.Context, id string) (*StatusView, error) {
	c, _, err := e.CheckDeadlines(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StatusView{Challenge: c, Timer: timerFor(c, e.now().UTC())}, nil
}

func timerFor(c *Challenge, now time.Time) Timer {
	var t Timer
	switch c.Status {
	case StatusScorecardPending:
		t.Kind, t.Deadline = "scorecard", c.ScorecardDeadline
	case StatusAIVerificationPending:
		t.Kind, t.Deadline = "verification", c.VerificationDeadline
	case StatusActive:
		if c.VerificationDeadline != nil {
			t.Kind, t.Deadline = "verification", c.VerificationDeadline
		}
	}
	if t.Deadline != nil {
		if rem := t.Deadline.Sub(now); rem > 0 {
			t.Remaining = int64(rem.Seconds())
		} else {
			t.Expired = true
		}
	}
	return t
}

// Sweep é a varredura periódica de prazos. Devolve quantos W.O. foram aplicados.
func (e *Engine) Sweep(ctx context.Context, limit int) (int, error) {
	ids, err := e.store.ListChallengesDue(ctx, e.now().UTC(), limit)
	if err != nil {
		return 0, err
	}
	fired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return fired, ctx.Err()
		}
		_, ok, err := e.CheckDeadlines(ctx, id)
		if err != nil {
			e.log.Warn("deadline check failed", zap.String("challengeId", id), zap.Error(err))
			continue
		}
		if ok {
			fired++
		}
	}
	return fired, nil
}
