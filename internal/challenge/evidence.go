package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

// ScorecardRequest é o placar declarado por um participante
type ScorecardRequest struct {
	UID               string
	ScoreA            int // desafiante
	ScoreB            int // oponente
	PlatformUsernames map[string]string
}

// EvidenceRequest envia imagens para o serviço de verificação
type EvidenceRequest struct {
	UID     string
	Images  []string
	Context map[string]string
}

// SubmitScorecard registra um scorecard. O primeiro inicia o prazo; o segundo
// liquida se os placares forem iguais ou leva a scorecard-conflict se não forem.
func (e *Engine) SubmitScorecard(ctx context.Context, id string, req ScorecardRequest) (*Challenge, error) {
	if req.ScoreA < 0 || req.ScoreB < 0 {
		return nil, fmt.Errorf("%w: scores must be non-negative", ErrInvalidInput)
	}
	var unresolved error
	c, err := e.mutate(ctx, id, change{event: events.ChallengeEvidence, actor: req.UID}, func(tx Tx, c *Challenge) error {
		if err := c.requireStatus("submit scorecard", StatusActive, StatusScorecardPending); err != nil {
			return err
		}
		now := e.now().UTC()
		if c.ScorecardDeadline != nil && !now.Before(*c.ScorecardDeadline) {
			return fmt.Errorf("%w: scorecard window closed", ErrInvalidTransition)
		}
		p := c.ParticipantByUID(req.UID)
		if p == nil {
			return fmt.Errorf("%w: not a participant", ErrForbidden)
		}
		if len(c.FundedOpponents()) != 1 {
			return fmt.Errorf("%w: scorecards need exactly one opponent", ErrInvalidInput)
		}
		if c.scorecardBy(req.UID) != nil {
			return fmt.Errorf("%w: scorecard already submitted", ErrDuplicateSubmission)
		}
		mergePlatformUsernames(p, req.PlatformUsernames)

		c.Scorecards = append(c.Scorecards, Scorecard{
			ReportedBy:        p.Username,
			ReporterUID:       p.UID,
			ScoreA:            req.ScoreA,
			ScoreB:            req.ScoreB,
			PlatformUsernames: req.PlatformUsernames,
			SubmittedAt:       now,
		})

		if len(c.Scorecards) == 1 {
			deadline := now.Add(e.cfg.ScorecardWindow)
			c.ScorecardDeadline = &deadline
			c.VerificationDeadline = nil
			return c.transition(StatusScorecardPending, PathScorecard)
		}

		first, second := c.Scorecards[0], c.Scorecards[1]
		if !ScorecardsAgree(first, second) {
			e.m.Conflicts.WithLabelValues("scorecard").Inc()
			e.log.Info("scorecard conflict",
				zap.String("challengeId", c.ID),
				zap.String("first", fmt.Sprintf("%d-%d", first.ScoreA, first.ScoreB)),
				zap.String("second", fmt.Sprintf("%d-%d", second.ScoreA, second.ScoreB)),
			)
			return c.transition(StatusScorecardConflict, PathScorecard)
		}

		winner, ok := scorecardOutcome(c, second)
		if !ok {
			return fmt.Errorf("%w: scorecards need exactly one opponent", ErrInvalidInput)
		}
		if winner == nil {
			return e.settleDraw(ctx, tx, c, PathScorecard)
		}
		err := e.settleWinner(ctx, tx, c, winner.Username, PathScorecard)
		if errors.Is(err, ErrWinnerUnresolved) {
			c.SettlementError = err.Error()
			unresolved = err
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, unresolved
}

// SubmitVerification envia evidências ao serviço de verificação depois de um
// conflito de scorecards.
func (e *Engine) SubmitVerification(ctx context.Context, id string, req EvidenceRequest) (*Challenge, error) {
	return e.submitAnalysis(ctx, id, req, KindVerification)
}

// SubmitProof é o caminho direto: prova fotográfica sem passar por scorecards
func (e *Engine) SubmitProof(ctx context.Context, id string, req EvidenceRequest) (*Challenge, error) {
	return e.submitAnalysis(ctx, id, req, KindProof)
}

// evidenceAllowed confere status e prazo para o tipo de evidência
func evidenceAllowed(c *Challenge, kind EvidenceKind, now time.Time) error {
	switch kind {
	case KindVerification:
		if err := c.requireStatus("submit verification", StatusScorecardConflict, StatusAIVerificationPending); err != nil {
			return err
		}
	case KindProof:
		if err := c.requireStatus("submit proof", StatusActive); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown evidence kind %q", ErrInvalidInput, kind)
	}
	// scorecard-conflict abre uma janela nova; o prazo antigo não vale mais
	if c.Status == StatusScorecardConflict {
		return nil
	}
	if c.VerificationDeadline != nil && !now.Before(*c.VerificationDeadline) {
		return fmt.Errorf("%w: verification window closed", ErrInvalidTransition)
	}
	return nil
}

// submitAnalysis chama o verificador fora de qualquer lock e só depois abre a
// transação curta que grava a reivindicação, muda o status e talvez liquida.
func (e *Engine) submitAnalysis(ctx context.Context, id string, req EvidenceRequest, kind EvidenceKind) (*Challenge, error) {
	if req.UID == "" || len(req.Images) == 0 {
		return nil, fmt.Errorf("%w: uid and at least one image are required", ErrInvalidInput)
	}

	snapshot, err := e.store.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	p := snapshot.ParticipantByUID(req.UID)
	if p == nil {
		return nil, fmt.Errorf("%w: not a participant", ErrForbidden)
	}
	if err := evidenceAllowed(snapshot, kind, e.now().UTC()); err != nil {
		return nil, err
	}
	if snapshot.claimBy(req.UID, kind) != nil {
		return nil, fmt.Errorf("%w: %s already submitted", ErrDuplicateSubmission, kind)
	}

	analysis, err := e.analyze(ctx, snapshot, p, req, kind)
	if err != nil {
		return nil, err
	}

	var unresolved error
	c, err := e.mutate(ctx, id, change{event: events.ChallengeEvidence, actor: req.UID}, func(tx Tx, c *Challenge) error {
		now := e.now().UTC()
		// estado relido depois do lock: a outra parte pode ter submetido nesse meio tempo
		if err := evidenceAllowed(c, kind, now); err != nil {
			return err
		}
		p := c.ParticipantByUID(req.UID)
		if p == nil {
			return fmt.Errorf("%w: not a participant", ErrForbidden)
		}
		if c.claimBy(req.UID, kind) != nil {
			return fmt.Errorf("%w: %s already submitted", ErrDuplicateSubmission, kind)
		}

		v := VerificationResult{
			Kind:          kind,
			SubmittedBy:   p.Username,
			SubmitterUID:  p.UID,
			ClaimedWinner: analysis.ClaimedWinner,
			Confidence:    analysis.Confidence,
			RawSignals: Signals{
				RawScoreText:       analysis.RawScoreText,
				DetectedIdentities: analysis.DetectedIdentities,
				Reasoning:          analysis.Reasoning,
				EvidenceURLs:       req.Images,
			},
			SubmittedAt: now,
		}
		CorrectVerdict(&v)
		if v.RawSignals.Corrected {
			e.log.Info("claimed winner corrected by score",
				zap.String("challengeId", c.ID),
				zap.String("claimed", v.RawSignals.OriginalClaim),
				zap.String("scoreWinner", v.ClaimedWinner),
				zap.String("rawScore", v.RawSignals.RawScoreText),
			)
		}
		if kind == KindProof && v.Confidence < e.cfg.ProofConfidence {
			if !v.RawSignals.Corrected {
				v.RawSignals.OriginalClaim = v.ClaimedWinner
			}
			v.RawSignals.LowConfidence = true
			v.ClaimedWinner = UnknownWinner
		}
		c.VerificationResults = append(c.VerificationResults, v)

		err := e.reconcileClaims(ctx, tx, c, kind, p)
		if errors.Is(err, ErrWinnerUnresolved) {
			c.SettlementError = err.Error()
			unresolved = err
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, unresolved
}

// reconcileClaims aplica o algoritmo de reconciliação depois de gravar uma reivindicação
func (e *Engine) reconcileClaims(ctx context.Context, tx Tx, c *Challenge, kind EvidenceKind, submitter *Participant) error {
	claims := c.claims(kind)
	now := e.now().UTC()
	path := PathVerification
	if kind == KindProof {
		path = PathProof
	}

	if len(claims) == 1 {
		deadline := now.Add(e.cfg.VerificationWindow)
		if kind == KindVerification {
			c.VerificationDeadline = &deadline
			return c.transition(StatusAIVerificationPending, path)
		}

		v := claims[0]
		if v.RawSignals.LowConfidence {
			// Unknown: sem prazo, só a prova da outra parte ou uma disputa destravam
			return nil
		}
		if corroborated(submitter, v.RawSignals.DetectedIdentities) {
			return e.settleWinner(ctx, tx, c, v.ClaimedWinner, path)
		}
		w, err := ResolveWinner(ctx, c, v.ClaimedWinner, e.dir)
		if err != nil {
			if errors.Is(err, ErrWinnerUnresolved) {
				e.m.Unresolved.Inc()
				e.log.Warn("proof winner unresolved, holding claim",
					zap.String("challengeId", c.ID), zap.String("claimed", v.ClaimedWinner))
			}
			return err
		}
		// o prazo de W.O. só corre quando a prova aponta o próprio submissor
		if w.UID == submitter.UID {
			c.VerificationDeadline = &deadline
		}
		return nil
	}

	first, second := claims[0], claims[len(claims)-1]
	if ClaimsAgree(*first, *second) {
		return e.settleWinner(ctx, tx, c, second.ClaimedWinner, path)
	}

	e.m.Conflicts.WithLabelValues(string(kind)).Inc()
	e.log.Info("verification conflict, settlement frozen",
		zap.String("challengeId", c.ID),
		zap.String("first", first.ClaimedWinner),
		zap.String("second", second.ClaimedWinner),
	)
	return c.transition(StatusAIConflict, path)
}

// analyze chama o verificador no máximo uma vez por (desafio, submissor, tipo).
// Um resultado já obtido é reaproveitado em retries.
func (e *Engine) analyze(ctx context.Context, c *Challenge, p *Participant, req EvidenceRequest, kind EvidenceKind) (*Analysis, error) {
	if e.verifier == nil {
		return nil, fmt.Errorf("%w: verifier not configured", ErrVerificationUnavailable)
	}
	key := fmt.Sprintf("analysis:%s:%s:%s", c.ID, kind, p.UID)

	if e.guard != nil {
		if a, ok, err := e.guard.Load(ctx, key); err != nil {
			e.log.Warn("analysis guard load failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			e.m.Verifications.WithLabelValues("cached").Inc()
			return a, nil
		}

		acquired, err := e.guard.Acquire(ctx, key+":lock", 2*e.cfg.VerificationTimeout)
		switch {
		case err != nil:
			e.log.Warn("analysis guard acquire failed", zap.String("key", key), zap.Error(err))
		case !acquired:
			e.m.Verifications.WithLabelValues("in_flight").Inc()
			return nil, fmt.Errorf("%w: verification already in progress", ErrDuplicateSubmission)
		default:
			defer func() {
				rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				if err := e.guard.Release(rctx, key+":lock"); err != nil {
					e.log.Warn("analysis guard release failed", zap.String("key", key), zap.Error(err))
				}
			}()
		}
	}

	names := make([]string, 0, len(c.Participants()))
	for _, pp := range c.Participants() {
		names = append(names, pp.Username)
	}

	vctx, cancel := context.WithTimeout(ctx, e.cfg.VerificationTimeout)
	defer cancel()
	a, err := e.verifier.Analyze(vctx, AnalyzeRequest{
		ChallengeID:  c.ID,
		SubmittedBy:  p.Username,
		Images:       req.Images,
		Game:         c.Game,
		Platform:     c.Platform,
		Participants: names,
		Context:      req.Context,
	})
	if err == nil && a == nil {
		err = errors.New("empty analysis")
	}
	if err != nil {
		e.m.Verifications.WithLabelValues("unavailable").Inc()
		e.log.Warn("verification call failed", zap.String("challengeId", c.ID), zap.String("submitter", p.Username), zap.Error(err))
		if !errors.Is(err, ErrVerificationUnavailable) {
			err = fmt.Errorf("%w: %v", ErrVerificationUnavailable, err)
		}
		return nil, err
	}

	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	e.m.Verifications.WithLabelValues("ok").Inc()

	if e.guard != nil {
		if err := e.guard.Store(ctx, key, a, e.cfg.AnalysisMemory); err != nil {
			e.log.Warn("analysis guard store failed", zap.String("key", key), zap.Error(err))
		}
	}
	return a, nil
}

func mergePlatformUsernames(p *Participant, names map[string]string) {
	if len(names) == 0 {
		return
	}
	if p.PlatformUsernames == nil {
		p.PlatformUsernames = map[string]string{}
	}
	for k, v := range names {
		if v != "" {
			p.PlatformUsernames[k] = v
		}
	}
}
