package challenge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

// CreateRequest cria um desafio. Desafios públicos não têm oponentes nomeados.
type CreateRequest struct {
	ChallengerUID      string
	ChallengerUsername string
	Opponents          []string
	Game               string
	Platform           string
	Stake              decimal.Decimal
	IsPublic           bool
	PlatformUsernames  map[string]string
}

// RespondRequest aceita ou recusa um convite
type RespondRequest struct {
	UID               string
	Accept            bool
	PlatformUsernames map[string]string
}

// JoinRequest entra num desafio público
type JoinRequest struct {
	UID               string
	Username          string
	PlatformUsernames map[string]string
}

// Create grava o desafio e debita o stake do desafiante na mesma transação
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*Challenge, error) {
	if req.ChallengerUID == "" || req.ChallengerUsername == "" || req.Game == "" {
		return nil, fmt.Errorf("%w: challenger and game are required", ErrInvalidInput)
	}
	if !req.Stake.IsPositive() {
		return nil, fmt.Errorf("%w: stake must be positive", ErrInvalidInput)
	}
	if req.IsPublic && len(req.Opponents) > 0 {
		return nil, fmt.Errorf("%w: public challenges cannot name opponents", ErrInvalidInput)
	}
	if !req.IsPublic && len(req.Opponents) == 0 {
		return nil, fmt.Errorf("%w: at least one opponent is required", ErrInvalidInput)
	}

	now := e.now().UTC()
	c := &Challenge{
		ID: uuid.New().String(),
		Challenger: Participant{
			UID:               req.ChallengerUID,
			Username:          req.ChallengerUsername,
			PlatformUsernames: req.PlatformUsernames,
		},
		Game:                req.Game,
		Stake:               req.Stake,
		Platform:            req.Platform,
		IsPublic:            req.IsPublic,
		Status:              StatusPending,
		Scorecards:          []Scorecard{},
		VerificationResults: []VerificationResult{},
		CreatedAt:           now,
		UpdatedAt:           now,
		Version:             1,
	}

	seen := map[string]bool{Normalize(req.ChallengerUsername): true}
	for _, name := range req.Opponents {
		n := Normalize(name)
		if n == "" || seen[n] {
			return nil, fmt.Errorf("%w: duplicate or empty opponent %q", ErrInvalidInput, name)
		}
		seen[n] = true
		uid, err := e.lookupUser(ctx, name)
		if err != nil {
			return nil, err
		}
		if uid == req.ChallengerUID {
			return nil, fmt.Errorf("%w: cannot challenge yourself", ErrInvalidInput)
		}
		c.Opponents = append(c.Opponents, Opponent{
			Participant: Participant{UID: uid, Username: name, FundsDeducted: decimal.Zero},
			Status:      OpponentPending,
		})
	}

	err := e.store.InTx(ctx, func(tx Tx) error {
		if err := e.escrow.Fund(ctx, tx, c, &c.Challenger); err != nil {
			return err
		}
		return tx.InsertChallenge(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("challenge created",
		zap.String("challengeId", c.ID),
		zap.String("challenger", c.Challenger.Username),
		zap.String("stake", c.Stake.String()),
		zap.Int("opponents", len(c.Opponents)),
		zap.Bool("public", c.IsPublic),
	)
	e.emit(ctx, c, c.Status, change{event: events.ChallengeCreated, actor: req.ChallengerUID})
	return c, nil
}

func (e *Engine) lookupUser(ctx context.Context, username string) (string, error) {
	if e.dir == nil {
		return "", fmt.Errorf("%w: user directory not configured", ErrInvalidInput)
	}
	uid, err := e.dir.ResolveByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("resolve opponent: %w", err)
	}
	if uid == "" {
		return "", fmt.Errorf("%w: unknown user %q", ErrNotFound, username)
	}
	return uid, nil
}

// Respond registra a resposta de um oponente convidado.
// Aceite debita o stake; recusa cancela o desafio e devolve tudo que já foi debitado.
func (e *Engine) Respond(ctx context.Context, id string, req RespondRequest) (*Challenge, error) {
	return e.mutate(ctx, id, change{event: events.ChallengeResponded, actor: req.UID}, func(tx Tx, c *Challenge) error {
		if err := c.requireStatus("respond", StatusPending); err != nil {
			return err
		}
		o := c.Opponent(req.UID)
		if o == nil {
			return fmt.Errorf("%w: not invited to challenge", ErrForbidden)
		}
		if o.Status != OpponentPending {
			return fmt.Errorf("%w: already responded (%s)", ErrDuplicateSubmission, o.Status)
		}
		now := e.now().UTC()
		o.ResponseAt = &now

		if !req.Accept {
			o.Status = OpponentDeclined
			return e.cancel(ctx, tx, c, PathDecline)
		}

		if err := e.escrow.Fund(ctx, tx, c, &o.Participant); err != nil {
			return err
		}
		o.Status = OpponentAccepted
		if len(req.PlatformUsernames) > 0 {
			o.PlatformUsernames = req.PlatformUsernames
		}

		for _, other := range c.Opponents {
			if other.Status != OpponentAccepted {
				return nil
			}
		}
		return c.transition(StatusReadyPending, "")
	})
}

// JoinPublic ocupa a vaga de oponente de um desafio público
func (e *Engine) JoinPublic(ctx context.Context, id string, req JoinRequest) (*Challenge, error) {
	if req.UID == "" || req.Username == "" {
		return nil, fmt.Errorf("%w: uid and username are required", ErrInvalidInput)
	}
	return e.mutate(ctx, id, change{event: events.ChallengeJoined, actor: req.UID}, func(tx Tx, c *Challenge) error {
		if err := c.requireStatus("join", StatusPending); err != nil {
			return err
		}
		if !c.IsPublic {
			return fmt.Errorf("%w: challenge is not public", ErrForbidden)
		}
		if req.UID == c.Challenger.UID {
			return fmt.Errorf("%w: cannot join your own challenge", ErrInvalidInput)
		}
		if c.Opponent(req.UID) != nil {
			return fmt.Errorf("%w: already joined", ErrDuplicateSubmission)
		}
		if len(c.FundedOpponents()) > 0 {
			return fmt.Errorf("%w: challenge is full", ErrInvalidTransition)
		}

		now := e.now().UTC()
		c.Opponents = append(c.Opponents, Opponent{
			Participant: Participant{
				UID:               req.UID,
				Username:          req.Username,
				PlatformUsernames: req.PlatformUsernames,
			},
			Status:     OpponentJoined,
			ResponseAt: &now,
		})
		o := &c.Opponents[len(c.Opponents)-1]
		if err := e.escrow.Fund(ctx, tx, c, &o.Participant); err != nil {
			return err
		}
		return c.transition(StatusReadyPending, "")
	})
}

// Cancel é o cancelamento pelo desafiante, só enquanto pending
func (e *Engine) Cancel(ctx context.Context, id, uid string) (*Challenge, error) {
	return e.mutate(ctx, id, change{actor: uid}, func(tx Tx, c *Challenge) error {
		if c.Challenger.UID != uid {
			return fmt.Errorf("%w: only the challenger can cancel", ErrForbidden)
		}
		if err := c.requireStatus("cancel", StatusPending); err != nil {
			return err
		}
		return e.cancel(ctx, tx, c, PathCancel)
	})
}

func (e *Engine) cancel(ctx context.Context, tx Tx, c *Challenge, path Path) error {
	if err := c.transition(StatusCancelled, path); err != nil {
		return err
	}
	s, err := e.escrow.Refund(ctx, tx, c, OutcomeRefund, path, e.now().UTC())
	if err != nil {
		return err
	}
	c.RewardClaimed = true
	c.Settlement = s
	e.log.Info("challenge cancelled", zap.String("challengeId", c.ID), zap.String("path", string(path)))
	return nil
}

// MarkReady marca o participante como pronto. Com todos prontos o desafio fica active.
func (e *Engine) MarkReady(ctx context.Context, id, uid string) (*Challenge, error) {
	return e.mutate(ctx, id, change{event: events.ChallengeReady, actor: uid}, func(tx Tx, c *Challenge) error {
		if err := c.requireStatus("mark ready", StatusReadyPending); err != nil {
			return err
		}
		p := c.ParticipantByUID(uid)
		if p == nil {
			return fmt.Errorf("%w: not a participant", ErrForbidden)
		}
		p.Ready = true
		for _, other := range c.Participants() {
			if !other.Ready {
				return nil
			}
		}
		return c.transition(StatusActive, "")
	})
}
