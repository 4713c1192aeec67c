package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutStatus acompanha o repasse de um saque ao gateway.
// O lançamento de withdrawal no ledger nunca muda; o estado do repasse vive aqui.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutDisbursed PayoutStatus = "disbursed"
	PayoutFailed    PayoutStatus = "failed"
)

// Payout é um saque aguardando (ou já com) repasse pelo gateway
type Payout struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transactionId"`
	UserID        string          `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	Destination   string          `json:"destination"`
	Status        PayoutStatus    `json:"status"`
	ExternalID    string          `json:"externalId,omitempty"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"lastError,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
