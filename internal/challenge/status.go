package challenge

import "fmt"

// Status é o estado do desafio na máquina de estados
type Status string

const (
	StatusPending               Status = "pending"
	StatusReadyPending          Status = "ready-pending"
	StatusActive                Status = "active"
	StatusScorecardPending      Status = "scorecard-pending"
	StatusScorecardConflict     Status = "scorecard-conflict"
	StatusAIVerificationPending Status = "ai-verification-pending"
	StatusAIConflict            Status = "ai-conflict"
	StatusCompleted             Status = "completed"
	StatusCancelled             Status = "cancelled"
)

// transitions lista as arestas legais da máquina de estados
var transitions = map[Status][]Status{
	StatusPending:               {StatusReadyPending, StatusCancelled},
	StatusReadyPending:          {StatusActive},
	StatusActive:                {StatusScorecardPending, StatusCompleted, StatusAIConflict},
	StatusScorecardPending:      {StatusCompleted, StatusScorecardConflict},
	StatusScorecardConflict:     {StatusAIVerificationPending, StatusCompleted},
	StatusAIVerificationPending: {StatusCompleted, StatusAIConflict},
	StatusAIConflict:            {StatusCompleted},
}

// adminOnly são arestas que só o resolvedor de disputas pode usar
var adminOnly = map[[2]Status]bool{
	{StatusScorecardConflict, StatusCompleted}: true,
	{StatusAIConflict, StatusCompleted}:        true,
}

// Terminal indica estados finais
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition diz se from -> to é permitido pelo caminho informado
func CanTransition(from, to Status, path Path) bool {
	if adminOnly[[2]Status{from, to}] && path != PathDispute {
		return false
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transition muda o status ou devolve ErrInvalidTransition
func (c *Challenge) transition(to Status, path Path) error {
	if !CanTransition(c.Status, to, path) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
	}
	c.Status = to
	return nil
}

// requireStatus falha com ErrInvalidTransition se o status atual não estiver na lista
func (c *Challenge) requireStatus(op string, allowed ...Status) error {
	for _, s := range allowed {
		if c.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, c.Status)
}
