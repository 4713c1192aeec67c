// Package simulator substitui localmente o serviço de verificação de prints e o
// gateway de pagamentos.
package simulator

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/simulator/dto"
)

// Server atende /analyze, /deposits e /payouts
type Server struct {
	log *zap.Logger

	// PayoutSuccess é a chance de um repasse sair como disbursed (0..1)
	PayoutSuccess float64
	// Rand permite fixar o sorteio nos testes
	Rand func() float64

	mu       sync.Mutex
	payouts  map[string]dto.PayoutResp // por payoutId
	requests *prometheus.CounterVec
}

func NewServer(log *zap.Logger, reg prometheus.Registerer) *Server {
	s := &Server{
		log:           log,
		PayoutSuccess: 0.8,
		Rand:          rand.Float64,
		payouts:       map[string]dto.PayoutResp{},
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simulator_requests_total",
			Help: "requisições atendidas por rota e resultado",
		}, []string{"route", "result"}),
	}
	if reg != nil {
		reg.MustRegister(s.requests)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.analyze)
	mux.HandleFunc("POST /deposits", s.deposit)
	mux.HandleFunc("POST /payouts", s.payout)
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// analyze devolve um vencedor previsível: Context["winner"] se vier,
// senão o primeiro participante
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req dto.AnalyzeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.requests.WithLabelValues("analyze", "bad_request").Inc()
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if len(req.Images) == 0 || len(req.Participants) == 0 {
		s.requests.WithLabelValues("analyze", "bad_request").Inc()
		http.Error(w, "images and participants are required", http.StatusBadRequest)
		return
	}

	winner := req.Participants[0]
	if v := strings.TrimSpace(req.Context["winner"]); v != "" {
		winner = v
	}
	confidence := 0.9
	if v, err := strconv.ParseFloat(req.Context["confidence"], 64); err == nil {
		confidence = v
	}

	resp := dto.AnalyzeResp{
		ClaimedWinner:      winner,
		Confidence:         confidence,
		RawScoreText:       req.Context["score"],
		DetectedIdentities: req.Participants,
		Reasoning:          fmt.Sprintf("%s appears as the winner on the final screen", winner),
	}
	s.requests.WithLabelValues("analyze", "ok").Inc()
	s.log.Info("analysis simulated",
		zap.String("challenge_id", req.ChallengeID),
		zap.String("submitted_by", req.SubmittedBy),
		zap.String("winner", winner))
	writeJSON(w, resp)
}

func parseAmount(v string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(v)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req dto.DepositReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		s.requests.WithLabelValues("deposit", "bad_request").Inc()
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if _, ok := parseAmount(req.Amount); !ok {
		s.requests.WithLabelValues("deposit", "bad_request").Inc()
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}
	s.requests.WithLabelValues("deposit", "ok").Inc()
	writeJSON(w, dto.DepositResp{ExternalID: "DEP-" + uuid.NewString()})
}

// payout confirma PayoutSuccess dos repasses; o resto fica pending ou failed.
// O mesmo payoutId sempre recebe a primeira resposta.
func (s *Server) payout(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req dto.PayoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		s.requests.WithLabelValues("payout", "bad_request").Inc()
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if _, ok := parseAmount(req.Amount); !ok {
		s.requests.WithLabelValues("payout", "bad_request").Inc()
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.payouts[req.PayoutID]; ok && req.PayoutID != "" {
		s.requests.WithLabelValues("payout", "replayed").Inc()
		writeJSON(w, prev)
		return
	}

	resp := dto.PayoutResp{ExternalID: "PAY-" + uuid.NewString(), Status: dto.StatusDisbursed}
	if roll := s.Rand(); roll >= s.PayoutSuccess {
		resp.Status = dto.StatusPending
		if roll >= (1+s.PayoutSuccess)/2 {
			resp.Status = dto.StatusFailed
			resp.Reason = "destination_rejected_mock"
		}
	}
	if req.PayoutID != "" {
		s.payouts[req.PayoutID] = resp
	}
	s.requests.WithLabelValues("payout", resp.Status).Inc()
	writeJSON(w, resp)
}
