package dto

// AnalyzeReq é o pedido do challenge-service. Context pode fixar o resultado da
// simulação com as chaves "winner", "score" e "confidence".
type AnalyzeReq struct {
	ChallengeID  string            `json:"challengeId"`
	SubmittedBy  string            `json:"submittedBy"`
	Images       []string          `json:"images"`
	Game         string            `json:"game"`
	Platform     string            `json:"platform"`
	Participants []string          `json:"participants"`
	Context      map[string]string `json:"context,omitempty"`
}

type AnalyzeResp struct {
	ClaimedWinner      string   `json:"claimedWinner"`
	Confidence         float64  `json:"confidence"`
	RawScoreText       string   `json:"rawScoreText,omitempty"`
	DetectedIdentities []string `json:"detectedIdentities,omitempty"`
	Reasoning          string   `json:"reasoning,omitempty"`
}

type DepositReq struct {
	UserID   string         `json:"userId"`
	Amount   string         `json:"amount"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type DepositResp struct {
	ExternalID string `json:"externalId"`
}

type PayoutReq struct {
	PayoutID    string `json:"payoutId"`
	UserID      string `json:"userId"`
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
}

type PayoutResp struct {
	ExternalID string `json:"externalId"`
	Status     string `json:"status"` // disbursed | pending | failed
	Reason     string `json:"reason,omitempty"`
}

const (
	StatusDisbursed = "disbursed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)
