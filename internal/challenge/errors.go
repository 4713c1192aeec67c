package challenge

import (
	"errors"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
)

var (
	// ErrInsufficientFunds é o mesmo sentinel do ledger, para o chamador não precisar importar os dois
	ErrInsufficientFunds       = ledger.ErrInsufficientFunds
	ErrInvalidTransition       = errors.New("invalid transition")
	ErrDuplicateSubmission     = errors.New("duplicate submission")
	ErrWinnerUnresolved        = errors.New("winner unresolved")
	ErrVerificationUnavailable = errors.New("verification unavailable")
	ErrAlreadySettled          = errors.New("already settled")

	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)

// Retryable indica falhas em que o cliente pode repetir a mesma chamada
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrVerificationUnavailable):
		return true
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrDuplicateSubmission),
		errors.Is(err, ErrWinnerUnresolved),
		errors.Is(err, ErrAlreadySettled),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrInvalidInput):
		return false
	}
	// falhas de banco/ledger: a transação foi desfeita, repetir é seguro
	return true
}
