package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/internal/wallet"
	"github.com/radieske/challenge-settlement-platform/internal/wallet-service/dto"
)

// HeaderUserID é preenchido pelo api-gateway
const HeaderUserID = "X-User-ID"

// Server expõe endpoints HTTP de carteira (saldo, extrato, depósito e saque)
type Server struct {
	log *zap.Logger
	svc *wallet.Service
}

// NewServer instancia o servidor HTTP de wallet
func NewServer(log *zap.Logger, svc *wallet.Service) *Server { return &Server{log: log, svc: svc} }

// Router retorna as rotas da API de wallet
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1/wallet", func(r chi.Router) {
		r.Use(requireUser)
		r.Get("/", s.getWallet)
		r.Get("/transactions", s.history)
		r.Post("/deposits", s.deposit)
		r.Post("/withdrawals", s.withdraw)
	})
	return r
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderUserID) == "" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "missing user", Code: "unauthenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getWallet retorna (ou cria) a carteira e o saldo do usuário
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	wl, err := s.svc.Balance(r.Context(), r.Header.Get(HeaderUserID))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{UserID: wl.UserID, WalletID: wl.ID, Balance: wl.Balance})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txs, err := s.svc.History(r.Context(), r.Header.Get(HeaderUserID), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// deposit cobra pelo gateway e credita a carteira
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.svc.Deposit(r.Context(), r.Header.Get(HeaderUserID), req.Amount, req.Metadata)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.DepositResponse{Transaction: res.Transaction, Balance: res.Balance, Replayed: res.Replayed})
}

// withdraw debita o saldo; o repasse segue assíncrono pelo payout-worker
func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.svc.Withdraw(r.Context(), r.Header.Get(HeaderUserID), req.Amount, req.Destination, req.RequestID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, p)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeJSON(w, http.StatusPaymentRequired, dto.ErrorResponse{Error: err.Error(), Code: "insufficient_funds"})
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "invalid_input"})
	case errors.Is(err, wallet.ErrDuplicateRequest):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: err.Error(), Code: "duplicate_request"})
	case errors.Is(err, wallet.ErrGateway):
		writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{Error: err.Error(), Code: "gateway_unavailable"})
	default:
		s.log.Error("wallet request failed",
			zap.String("path", r.URL.Path),
			zap.String("requestId", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error", Code: "internal"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json", Code: "invalid_input"})
		return false
	}
	return true
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
