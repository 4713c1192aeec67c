package httpapi

import (
	"errors"
	"net/http"

	"github.com/radieske/challenge-settlement-platform/internal/challenge"
	"github.com/radieske/challenge-settlement-platform/internal/challenge-service/dto"
	"github.com/radieske/challenge-settlement-platform/internal/directory"
	"github.com/radieske/challenge-settlement-platform/internal/evidence"
)

const supportMessage = "we could not determine the winner of this challenge; please contact support"

// errorResponse traduz os erros do domínio para status HTTP
func errorResponse(err error) (int, dto.ErrorResponse) {
	switch {
	case errors.Is(err, challenge.ErrInsufficientFunds):
		return http.StatusPaymentRequired, dto.ErrorResponse{Error: err.Error(), Code: "insufficient_funds"}
	case errors.Is(err, challenge.ErrWinnerUnresolved):
		return http.StatusUnprocessableEntity, dto.ErrorResponse{Error: supportMessage, Code: "winner_unresolved"}
	case errors.Is(err, challenge.ErrVerificationUnavailable):
		return http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error(), Code: "verification_unavailable"}
	case errors.Is(err, challenge.ErrDuplicateSubmission):
		return http.StatusConflict, dto.ErrorResponse{Error: err.Error(), Code: "duplicate_submission"}
	case errors.Is(err, challenge.ErrInvalidTransition):
		return http.StatusConflict, dto.ErrorResponse{Error: err.Error(), Code: "invalid_transition"}
	case errors.Is(err, challenge.ErrAlreadySettled):
		return http.StatusConflict, dto.ErrorResponse{Error: err.Error(), Code: "already_settled"}
	case errors.Is(err, directory.ErrUsernameTaken):
		return http.StatusConflict, dto.ErrorResponse{Error: err.Error(), Code: "username_taken"}
	case errors.Is(err, challenge.ErrNotFound):
		return http.StatusNotFound, dto.ErrorResponse{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, challenge.ErrForbidden):
		return http.StatusForbidden, dto.ErrorResponse{Error: err.Error(), Code: "forbidden"}
	case errors.Is(err, challenge.ErrInvalidInput),
		errors.Is(err, evidence.ErrUnsupportedType),
		errors.Is(err, evidence.ErrTooLarge):
		return http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "invalid_input"}
	}
	return http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error", Code: "internal"}
}
