package ledger

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrNegativeBalance   = errors.New("negative balance only allowed for admin adjustments")
)
