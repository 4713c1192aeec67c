package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType identifica a natureza de um lançamento no ledger
type TxType string

const (
	TypeDeposit            TxType = "deposit"
	TypeWithdrawal         TxType = "withdrawal"
	TypeChallengeDeduction TxType = "challenge_deduction"
	TypeChallengeReward    TxType = "challenge_reward"
	TypeAdminFee           TxType = "admin_fee"
	TypeRefund             TxType = "refund"
	TypeAdminAdjustment    TxType = "admin_adjustment"
	TypeTournamentEntry    TxType = "tournament_entry"
	TypeTournamentReward   TxType = "tournament_reward"
	TypeTournamentRefund   TxType = "tournament_refund"
)

// TxStatus é o status de um lançamento. Lançamentos nunca mudam depois de gravados.
type TxStatus string

const (
	StatusPending   TxStatus = "pending"
	StatusCompleted TxStatus = "completed"
)

// Wallet é a carteira de um usuário (uma por usuário)
type Wallet struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Transaction é um lançamento imutável. Amount tem sinal: débitos são negativos.
type Transaction struct {
	ID             string          `json:"id"`
	WalletID       string          `json:"walletId"`
	UserID         string          `json:"userId"`
	Type           TxType          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	BalanceAfter   decimal.Decimal `json:"balanceAfter"`
	Description    string          `json:"description"`
	Status         TxStatus        `json:"status"`
	Reference      string          `json:"reference,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Request descreve um crédito ou débito.
// Amount é sempre positivo; o sinal é decidido pela operação.
type Request struct {
	UserID         string
	Amount         decimal.Decimal
	Type           TxType
	Reference      string
	Description    string
	IdempotencyKey string
	Metadata       map[string]any

	// AllowNegative só é aceito para TypeAdminAdjustment (estorno administrativo)
	AllowNegative bool
}

// Result é o retorno de Credit/Debit
type Result struct {
	Transaction *Transaction
	Balance     decimal.Decimal
	Replayed    bool // true quando a chave de idempotência já existia
}
