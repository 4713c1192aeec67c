package events

import "time"

// Tipos de evento publicados no tópico "challenge_events"
const (
	ChallengeCreated         = "challenge.created"
	ChallengeResponded       = "challenge.responded"
	ChallengeJoined          = "challenge.joined"
	ChallengeReady           = "challenge.ready"
	ChallengeEvidence        = "challenge.evidence_submitted"
	ChallengeStatusChanged   = "challenge.status_changed"
	ChallengeSettled         = "challenge.settled"
	ChallengeRefunded        = "challenge.refunded"
	ChallengeDisputed        = "challenge.disputed"
	ChallengeDisputeResolved = "challenge.dispute_resolved"
)

// ChallengeEvent é emitido pelo challenge-service depois de cada commit
type ChallengeEvent struct {
	Type           string    `json:"type"`
	ChallengeID    string    `json:"challengeId"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	Actor          string    `json:"actor,omitempty"`
	Winner         string    `json:"winner,omitempty"`
	Outcome        string    `json:"outcome,omitempty"`
	DisputeID      string    `json:"disputeId,omitempty"`
	Version        int64     `json:"version"`
	Seq            int       `json:"seq"` // ordem do evento dentro da mesma versão
	OccurredAt     time.Time `json:"occurredAt"`
}
