package challenge

import (
	"context"
	"time"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

// Tx é a transação de persistência. Dentro dela o desafio fica travado
// (SELECT ... FOR UPDATE) e as operações de ledger são atômicas com a mudança de status.
type Tx interface {
	ledger.Store

	// LockChallenge retorna ErrNotFound se o desafio não existir
	LockChallenge(ctx context.Context, id string) (*Challenge, error)
	InsertChallenge(ctx context.Context, c *Challenge) error
	UpdateChallenge(ctx context.Context, c *Challenge) error

	InsertDispute(ctx context.Context, d *Dispute) error
	LockDispute(ctx context.Context, id string) (*Dispute, error)
	UpdateDispute(ctx context.Context, d *Dispute) error
	// OpenDisputeFor retorna a disputa não resolvida do desafio, ou nil
	OpenDisputeFor(ctx context.Context, challengeID string) (*Dispute, error)
}

// Store abre transações e faz leituras sem lock
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetChallenge(ctx context.Context, id string) (*Challenge, error)
	// ListChallengesDue lista desafios com prazo vencido aguardando segunda submissão
	ListChallengesDue(ctx context.Context, now time.Time, limit int) ([]string, error)
	ListChallengesByUser(ctx context.Context, uid string, limit int) ([]Challenge, error)
	ListDisputes(ctx context.Context, status DisputeStatus) ([]Dispute, error)
	GetDispute(ctx context.Context, id string) (*Dispute, error)
}

// Directory resolve nomes de usuário. Retorna "" quando não encontra.
type Directory interface {
	ResolveByUsername(ctx context.Context, name string) (string, error)
	ResolveByPlatformUsername(ctx context.Context, name string) (string, error)
}

// AnalyzeRequest é o pedido enviado ao serviço de verificação
type AnalyzeRequest struct {
	ChallengeID  string            `json:"challengeId"`
	SubmittedBy  string            `json:"submittedBy"`
	Images       []string          `json:"images"`
	Game         string            `json:"game"`
	Platform     string            `json:"platform"`
	Participants []string          `json:"participants"`
	Context      map[string]string `json:"context,omitempty"`
}

// Analysis é a resposta do serviço de verificação
type Analysis struct {
	ClaimedWinner      string   `json:"claimedWinner"`
	Confidence         float64  `json:"confidence"`
	RawScoreText       string   `json:"rawScoreText,omitempty"`
	DetectedIdentities []string `json:"detectedIdentities,omitempty"`
	Reasoning          string   `json:"reasoning,omitempty"`
}

// Verifier chama o serviço externo. Falhas devem vir como ErrVerificationUnavailable.
type Verifier interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error)
}

// AnalysisGuard garante no máximo uma chamada externa por (challengeId, submittedBy):
// um lock de curta duração durante a chamada e a lembrança do resultado para retries.
type AnalysisGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Load(ctx context.Context, key string) (*Analysis, bool, error)
	Store(ctx context.Context, key string, a *Analysis, ttl time.Duration) error
}

// Publisher envia eventos de domínio depois do commit (best effort)
type Publisher interface {
	Publish(ctx context.Context, ev events.ChallengeEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.ChallengeEvent) error { return nil }
