package dto

import "github.com/shopspring/decimal"

type DepositRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

type WithdrawRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination"`
	RequestID   string          `json:"requestId,omitempty"` // opcional p/ idempotência
}
