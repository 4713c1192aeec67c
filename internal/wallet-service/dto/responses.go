package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
)

type WalletResponse struct {
	UserID   string          `json:"userId"`
	WalletID string          `json:"walletId"`
	Balance  decimal.Decimal `json:"balance"`
}

type DepositResponse struct {
	Transaction *ledger.Transaction `json:"transaction"`
	Balance     decimal.Decimal     `json:"balance"`
	Replayed    bool                `json:"replayed"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
