package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/radieske/challenge-settlement-platform/internal/challenge-service/dto"
	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/internal/tournament"
)

// Tournaments é implementado por *tournament.Service
type Tournaments interface {
	Enter(ctx context.Context, tournamentID, userID string, fee decimal.Decimal) (*ledger.Result, error)
	Distribute(ctx context.Context, tournamentID string, placements []tournament.Placement, ratio decimal.Decimal) (*tournament.Distribution, error)
	Cancel(ctx context.Context, tournamentID string) (map[string]decimal.Decimal, error)
}

func tournamentError(err error) (int, dto.ErrorResponse, bool) {
	switch {
	case errors.Is(err, tournament.ErrClosed), errors.Is(err, tournament.ErrAlreadyDistributed):
		return http.StatusConflict, dto.ErrorResponse{Error: err.Error(), Code: "tournament_closed"}, true
	case errors.Is(err, tournament.ErrNoEntries),
		errors.Is(err, tournament.ErrInvalidPlacements),
		errors.Is(err, tournament.ErrInvalidRatio),
		errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "invalid_input"}, true
	}
	return 0, dto.ErrorResponse{}, false
}

func (s *Server) tournamentFail(w http.ResponseWriter, r *http.Request, err error) {
	if status, body, ok := tournamentError(err); ok {
		writeJSON(w, status, body)
		return
	}
	s.fail(w, r, err)
}

func (s *Server) enterTournament(w http.ResponseWriter, r *http.Request) {
	var req dto.TournamentEntryRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.tournaments.Enter(r.Context(), chi.URLParam(r, "id"), userFrom(r).ID, req.Fee)
	if err != nil {
		s.tournamentFail(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, res.Transaction)
}

func (s *Server) distributeTournament(w http.ResponseWriter, r *http.Request) {
	var req dto.DistributeRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := s.tournaments.Distribute(r.Context(), chi.URLParam(r, "id"), req.Placements, req.Ratio)
	if err != nil {
		s.tournamentFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cancelTournament(w http.ResponseWriter, r *http.Request) {
	out, err := s.tournaments.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.tournamentFail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
