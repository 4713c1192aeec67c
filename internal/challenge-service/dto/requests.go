package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/challenge-settlement-platform/internal/tournament"
)

type CreateChallengeRequest struct {
	Opponents         []string          `json:"opponents"`
	Game              string            `json:"game"`
	Platform          string            `json:"platform"`
	Stake             decimal.Decimal   `json:"stake"`
	IsPublic          bool              `json:"isPublic"`
	PlatformUsernames map[string]string `json:"platformUsernames,omitempty"`
}

type RespondRequest struct {
	Accept            bool              `json:"accept"`
	PlatformUsernames map[string]string `json:"platformUsernames,omitempty"`
}

type JoinRequest struct {
	PlatformUsernames map[string]string `json:"platformUsernames,omitempty"`
}

type ScorecardRequest struct {
	ScoreA            int               `json:"scoreA"` // desafiante
	ScoreB            int               `json:"scoreB"` // oponente
	PlatformUsernames map[string]string `json:"platformUsernames,omitempty"`
}

type EvidenceRequest struct {
	Images  []string          `json:"images"`
	Context map[string]string `json:"context,omitempty"`
}

type DisputeRequest struct {
	Reason   string   `json:"reason"`
	Evidence []string `json:"evidence,omitempty"`
}

type ReviewRequest struct {
	Notes string `json:"notes"`
}

type ResolveRequest struct {
	Resolution     string `json:"resolution"` // challenger_wins | opponent_wins | split | refund
	WinnerUsername string `json:"winnerUsername,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

type ProfileRequest struct {
	Username          string            `json:"username"`
	PlatformUsernames map[string]string `json:"platformUsernames,omitempty"`
}

type TournamentEntryRequest struct {
	Fee decimal.Decimal `json:"fee"`
}

type DistributeRequest struct {
	Placements []tournament.Placement `json:"placements"`
	Ratio      decimal.Decimal        `json:"ratio"` // zero usa o padrão configurado
}
