package challenge

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpponentStatus é a resposta de um oponente ao convite
type OpponentStatus string

const (
	OpponentPending  OpponentStatus = "pending"
	OpponentAccepted OpponentStatus = "accepted"
	OpponentDeclined OpponentStatus = "declined"
	OpponentJoined   OpponentStatus = "joined"
)

// Participant é quem tem (ou terá) dinheiro em escrow no desafio
type Participant struct {
	UID               string            `json:"uid"`
	Username          string            `json:"username"`
	PlatformUsernames map[string]string `json:"platformUsernames,omitempty"`
	FundsDeducted     decimal.Decimal   `json:"fundsDeducted"`
	Ready             bool              `json:"ready"`
}

// Opponent é um participante convidado (ou que entrou num desafio público)
type Opponent struct {
	Participant
	Status     OpponentStatus `json:"status"`
	ResponseAt *time.Time     `json:"responseAt,omitempty"`
}

// Funded indica se o oponente já teve a parte do stake debitada
func (o *Opponent) Funded() bool {
	return o.Status == OpponentAccepted || o.Status == OpponentJoined
}

// Scorecard é um resultado declarado pelo próprio jogador.
// ScoreA é sempre o placar do desafiante e ScoreB o do oponente.
type Scorecard struct {
	ReportedBy        string            `json:"reportedBy"`
	ReporterUID       string            `json:"reporterUid"`
	ScoreA            int               `json:"scoreA"`
	ScoreB            int               `json:"scoreB"`
	PlatformUsernames map[string]string `json:"platformUsernames,omitempty"`
	SubmittedAt       time.Time         `json:"submittedAt"`
}

// EvidenceKind distingue verificação (após conflito de scorecards) de prova direta
type EvidenceKind string

const (
	KindVerification EvidenceKind = "verification"
	KindProof        EvidenceKind = "proof"
)

// Signals guarda o que o serviço de verificação devolveu, mais as correções aplicadas
type Signals struct {
	RawScoreText       string   `json:"rawScoreText,omitempty"`
	DetectedIdentities []string `json:"detectedIdentities,omitempty"`
	Reasoning          string   `json:"reasoning,omitempty"`
	EvidenceURLs       []string `json:"evidenceUrls,omitempty"`
	OriginalClaim      string   `json:"originalClaim,omitempty"`
	Corrected          bool     `json:"corrected,omitempty"`
	LowConfidence      bool     `json:"lowConfidence,omitempty"`
}

// VerificationResult é uma reivindicação verificada. Única por (challengeId, submittedBy, kind).
type VerificationResult struct {
	Kind          EvidenceKind `json:"kind"`
	SubmittedBy   string       `json:"submittedBy"`
	SubmitterUID  string       `json:"submitterUid"`
	ClaimedWinner string       `json:"claimedWinner"`
	Confidence    float64      `json:"confidence"`
	RawSignals    Signals      `json:"rawSignals"`
	SubmittedAt   time.Time    `json:"submittedAt"`
}

// Outcome é o tipo de liquidação
type Outcome string

const (
	OutcomeWin    Outcome = "win"
	OutcomeDraw   Outcome = "draw"
	OutcomeSplit  Outcome = "split"
	OutcomeRefund Outcome = "refund"
)

// Path registra por qual caminho o desafio foi liquidado
type Path string

const (
	PathScorecard    Path = "scorecard"
	PathVerification Path = "verification"
	PathProof        Path = "proof"
	PathForfeit      Path = "forfeit"
	PathDispute      Path = "dispute"
	PathCancel       Path = "cancel"
	PathDecline      Path = "decline"
)

// Settlement é o registro do que foi pago ao liquidar
type Settlement struct {
	Outcome   Outcome         `json:"outcome"`
	Path      Path            `json:"path"`
	WinnerUID string          `json:"winnerUid,omitempty"`
	Pool      decimal.Decimal `json:"pool"`
	Reward    decimal.Decimal `json:"reward"`
	AdminFee  decimal.Decimal `json:"adminFee"`
	SettledAt time.Time       `json:"settledAt"`
}

// Challenge é o documento do desafio. Só é alterado pelas funções de transição do Engine.
type Challenge struct {
	ID                   string               `json:"id"`
	Challenger           Participant          `json:"challenger"`
	Opponents            []Opponent           `json:"opponents"`
	Game                 string               `json:"game"`
	Stake                decimal.Decimal      `json:"stake"`
	Platform             string               `json:"platform"`
	IsPublic             bool                 `json:"isPublic"`
	Status               Status               `json:"status"`
	Scorecards           []Scorecard          `json:"scorecards"`
	VerificationResults  []VerificationResult `json:"verificationResults"`
	Winner               *string              `json:"winner"`
	WinnerUID            string               `json:"winnerUid,omitempty"`
	RewardClaimed        bool                 `json:"rewardClaimed"`
	ScorecardDeadline    *time.Time           `json:"scorecardDeadline,omitempty"`
	VerificationDeadline *time.Time           `json:"verificationDeadline,omitempty"`
	Settlement           *Settlement          `json:"settlement,omitempty"`
	Resolution           string               `json:"resolution,omitempty"`
	SettlementError      string               `json:"settlementError,omitempty"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt"`
	Version              int64                `json:"version"`
}

// Participants retorna o desafiante e os oponentes com escrow debitado
func (c *Challenge) Participants() []*Participant {
	out := []*Participant{&c.Challenger}
	for i := range c.Opponents {
		if c.Opponents[i].Funded() {
			out = append(out, &c.Opponents[i].Participant)
		}
	}
	return out
}

// ParticipantByUID busca entre desafiante e oponentes financiados
func (c *Challenge) ParticipantByUID(uid string) *Participant {
	for _, p := range c.Participants() {
		if p.UID == uid {
			return p
		}
	}
	return nil
}

// Opponent busca um oponente (qualquer status) pelo uid
func (c *Challenge) Opponent(uid string) *Opponent {
	for i := range c.Opponents {
		if c.Opponents[i].UID == uid {
			return &c.Opponents[i]
		}
	}
	return nil
}

// FundedOpponents retorna só os oponentes que aceitaram ou entraram
func (c *Challenge) FundedOpponents() []*Opponent {
	var out []*Opponent
	for i := range c.Opponents {
		if c.Opponents[i].Funded() {
			out = append(out, &c.Opponents[i])
		}
	}
	return out
}

func (c *Challenge) scorecardBy(uid string) *Scorecard {
	for i := range c.Scorecards {
		if c.Scorecards[i].ReporterUID == uid {
			return &c.Scorecards[i]
		}
	}
	return nil
}

func (c *Challenge) claims(kind EvidenceKind) []*VerificationResult {
	var out []*VerificationResult
	for i := range c.VerificationResults {
		if c.VerificationResults[i].Kind == kind {
			out = append(out, &c.VerificationResults[i])
		}
	}
	return out
}

func (c *Challenge) claimBy(uid string, kind EvidenceKind) *VerificationResult {
	for _, v := range c.claims(kind) {
		if v.SubmitterUID == uid {
			return v
		}
	}
	return nil
}

// DisputeStatus é o estado de uma disputa
type DisputeStatus string

const (
	DisputePending  DisputeStatus = "pending"
	DisputeReviewed DisputeStatus = "reviewed"
	DisputeResolved DisputeStatus = "resolved"
)

// Resolution é a decisão do admin
type Resolution string

const (
	ResolutionChallengerWins Resolution = "challenger_wins"
	ResolutionOpponentWins   Resolution = "opponent_wins"
	ResolutionSplit          Resolution = "split"
	ResolutionRefund         Resolution = "refund"
)

// Valid confere se a resolução é conhecida
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionChallengerWins, ResolutionOpponentWins, ResolutionSplit, ResolutionRefund:
		return true
	}
	return false
}

// Dispute é uma contestação aberta por um participante (ou pelo admin)
type Dispute struct {
	ID          string        `json:"id"`
	ChallengeID string        `json:"challengeId"`
	RaisedBy    string        `json:"raisedBy"`
	Reason      string        `json:"reason"`
	Evidence    []string      `json:"evidence,omitempty"`
	Status      DisputeStatus `json:"status"`
	Resolution  Resolution    `json:"resolution,omitempty"`
	AdminNotes  string        `json:"adminNotes,omitempty"`
	ResolvedBy  string        `json:"resolvedBy,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	ResolvedAt  *time.Time    `json:"resolvedAt,omitempty"`
}
