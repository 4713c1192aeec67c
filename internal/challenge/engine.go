package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

// Settings são os parâmetros de produto do motor
type Settings struct {
	StakeFraction       decimal.Decimal // fração do stake que cada lado financia
	RewardRatio         decimal.Decimal // parte do pool que vai para o vencedor
	AdminUserID         string          // carteira que recebe a taxa
	ScorecardWindow     time.Duration
	VerificationWindow  time.Duration
	VerificationTimeout time.Duration
	ProofConfidence     float64       // confiança mínima para liquidar direto por prova
	AnalysisMemory      time.Duration // por quanto tempo lembrar uma análise já feita
}

// DefaultSettings: 50% por lado, 95% ao vencedor, 5% de taxa
func DefaultSettings() Settings {
	return Settings{
		StakeFraction:       decimal.RequireFromString("0.5"),
		RewardRatio:         decimal.RequireFromString("0.95"),
		AdminUserID:         "admin",
		ScorecardWindow:     30 * time.Minute,
		VerificationWindow:  30 * time.Minute,
		VerificationTimeout: 20 * time.Second,
		ProofConfidence:     0.8,
		AnalysisMemory:      24 * time.Hour,
	}
}

// Deps são os colaboradores do Engine. Só Store e Ledger são obrigatórios.
type Deps struct {
	Store     Store
	Ledger    *ledger.Ledger
	Directory Directory
	Verifier  Verifier
	Guard     AnalysisGuard
	Publisher Publisher
	Log       *zap.Logger
	Metrics   *Metrics
	Now       func() time.Time
}

// Engine é a máquina de estados do desafio e o ponto de entrada de todas as operações
type Engine struct {
	cfg      Settings
	store    Store
	escrow   *Escrow
	dir      Directory
	verifier Verifier
	guard    AnalysisGuard
	pub      Publisher
	log      *zap.Logger
	m        *Metrics
	now      func() time.Time
}

// NewEngine monta o motor com defaults para colaboradores opcionais
func NewEngine(cfg Settings, d Deps) *Engine {
	e := &Engine{
		cfg:      cfg,
		store:    d.Store,
		escrow:   NewEscrow(d.Ledger, cfg.StakeFraction, cfg.RewardRatio, cfg.AdminUserID),
		dir:      d.Directory,
		verifier: d.Verifier,
		guard:    d.Guard,
		pub:      d.Publisher,
		log:      d.Log,
		m:        d.Metrics,
		now:      d.Now,
	}
	if e.pub == nil {
		e.pub = nopPublisher{}
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.m == nil {
		e.m = NewMetrics(nil)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Escrow expõe o cálculo de stakes (usado pelas camadas HTTP)
func (e *Engine) Escrow() *Escrow { return e.escrow }

// errNoChange aborta a transação sem erro para o chamador
var errNoChange = errors.New("no change")

// change descreve o evento de domínio de uma mutação
type change struct {
	event     string
	actor     string
	disputeID string
}

// mutate trava o desafio, aplica fn e grava, tudo numa transação.
// Se fn falhar nada é gravado (nem status nem lançamentos), então repetir é seguro.
func (e *Engine) mutate(ctx context.Context, id string, ch change, fn func(tx Tx, c *Challenge) error) (*Challenge, error) {
	var (
		out  *Challenge
		prev Status
	)
	err := e.store.InTx(ctx, func(tx Tx) error {
		c, err := tx.LockChallenge(ctx, id)
		if err != nil {
			return err
		}
		prev = c.Status
		if err := fn(tx, c); err != nil {
			return err
		}
		if err := checkInvariants(c); err != nil {
			return err
		}
		c.UpdatedAt = e.now().UTC()
		c.Version++
		if err := tx.UpdateChallenge(ctx, c); err != nil {
			return fmt.Errorf("update challenge: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(ctx, out, prev, ch)
	return out, nil
}

// checkInvariants barra documentos que nunca podem ser gravados
func checkInvariants(c *Challenge) error {
	if c.Status != StatusCompleted {
		return nil
	}
	if c.Settlement == nil || !c.RewardClaimed {
		return fmt.Errorf("challenge %s completed without settlement", c.ID)
	}
	if c.Settlement.Outcome == OutcomeWin && (c.Winner == nil || c.WinnerUID == "") {
		return fmt.Errorf("%w: challenge %s completed without winner", ErrWinnerUnresolved, c.ID)
	}
	return nil
}

// emit publica os eventos depois do commit. Falhas só geram log.
func (e *Engine) emit(ctx context.Context, c *Challenge, prev Status, ch change) {
	base := events.ChallengeEvent{
		ChallengeID: c.ID,
		Status:      string(c.Status),
		Actor:       ch.actor,
		DisputeID:   ch.disputeID,
		Version:     c.Version,
		OccurredAt:  c.UpdatedAt,
	}
	if c.Winner != nil {
		base.Winner = *c.Winner
	}
	if c.Settlement != nil {
		base.Outcome = string(c.Settlement.Outcome)
	}

	var out []events.ChallengeEvent
	if ch.event != "" {
		ev := base
		ev.Type = ch.event
		out = append(out, ev)
	}
	if prev != c.Status {
		ev := base
		ev.Type = events.ChallengeStatusChanged
		ev.PreviousStatus = string(prev)
		out = append(out, ev)

		switch c.Status {
		case StatusCompleted:
			ev.Type = events.ChallengeSettled
			if c.Settlement != nil && c.Settlement.Outcome != OutcomeWin {
				ev.Type = events.ChallengeRefunded
			}
			out = append(out, ev)
		case StatusCancelled:
			ev.Type = events.ChallengeRefunded
			out = append(out, ev)
		}
	}

	for i, ev := range out {
		ev.Seq = i
		if err := e.pub.Publish(ctx, ev); err != nil {
			e.log.Warn("publish challenge event failed",
				zap.String("challengeId", c.ID), zap.String("type", ev.Type), zap.Error(err))
		}
	}
}

// payWinner conclui o desafio pagando o vencedor
func (e *Engine) payWinner(ctx context.Context, tx Tx, c *Challenge, w *Participant, path Path) error {
	if c.RewardClaimed {
		return ErrAlreadySettled
	}
	if w == nil {
		return fmt.Errorf("%w: no participant for winner", ErrWinnerUnresolved)
	}
	if err := c.transition(StatusCompleted, path); err != nil {
		return err
	}
	s, err := e.escrow.Payout(ctx, tx, c, w, path, e.now().UTC())
	if err != nil {
		return err
	}
	name := w.Username
	c.Winner = &name
	c.WinnerUID = w.UID
	c.RewardClaimed = true
	c.Settlement = s
	c.SettlementError = ""

	e.m.Settlements.WithLabelValues(string(path), string(OutcomeWin)).Inc()
	e.log.Info("challenge settled",
		zap.String("challengeId", c.ID),
		zap.String("winner", name),
		zap.String("path", string(path)),
		zap.String("reward", s.Reward.StringFixed(2)),
		zap.String("adminFee", s.AdminFee.StringFixed(2)),
	)
	return nil
}

// settleWinner resolve o nome reivindicado para um participante e paga
func (e *Engine) settleWinner(ctx context.Context, tx Tx, c *Challenge, claimed string, path Path) error {
	w, err := ResolveWinner(ctx, c, claimed, e.dir)
	if err != nil {
		if errors.Is(err, ErrWinnerUnresolved) {
			e.m.Unresolved.Inc()
			e.log.Warn("winner unresolved, settlement blocked",
				zap.String("challengeId", c.ID), zap.String("claimed", claimed), zap.String("path", string(path)))
		}
		return err
	}
	return e.payWinner(ctx, tx, c, w, path)
}

// settleDraw conclui o desafio devolvendo as contribuições
func (e *Engine) settleDraw(ctx context.Context, tx Tx, c *Challenge, path Path) error {
	if c.RewardClaimed {
		return ErrAlreadySettled
	}
	if err := c.transition(StatusCompleted, path); err != nil {
		return err
	}
	s, err := e.escrow.Refund(ctx, tx, c, OutcomeDraw, path, e.now().UTC())
	if err != nil {
		return err
	}
	c.RewardClaimed = true
	c.Settlement = s
	e.m.Settlements.WithLabelValues(string(path), string(OutcomeDraw)).Inc()
	e.log.Info("challenge drawn", zap.String("challengeId", c.ID), zap.String("path", string(path)))
	return nil
}

// Get lê o desafio sem lock
func (e *Engine) Get(ctx context.Context, id string) (*Challenge, error) {
	return e.store.GetChallenge(ctx, id)
}

// ListForUser lista desafios em que o usuário participa
func (e *Engine) ListForUser(ctx context.Context, uid string, limit int) ([]Challenge, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return e.store.ListChallengesByUser(ctx, uid, limit)
}
