package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/challenge"
	"github.com/radieske/challenge-settlement-platform/internal/challenge-service/dto"
	"github.com/radieske/challenge-settlement-platform/internal/directory"
)

// Headers preenchidos pelo api-gateway depois da autenticação
const (
	HeaderUserID     = "X-User-ID"
	HeaderUsername   = "X-Username"
	HeaderAdminToken = "X-Admin-Token"
)

const maxUploadSize = 32 << 20

// Registry grava o perfil do usuário usado na resolução de vencedores
type Registry interface {
	Upsert(ctx context.Context, u directory.User) error
}

// EvidenceStore guarda uma imagem e devolve a URL
type EvidenceStore interface {
	Put(ctx context.Context, challengeID, submitter, contentType string, size int64, body io.Reader) (string, error)
}

// Server expõe as operações de desafio, disputa e administração
type Server struct {
	log         *zap.Logger
	engine      *challenge.Engine
	registry    Registry
	evidence    EvidenceStore
	ws          http.Handler
	tournaments Tournaments
	adminToken  string
	sweepBatch  int
}

type Options struct {
	Registry    Registry
	Evidence    EvidenceStore
	WS          http.Handler
	Tournaments Tournaments // opcional
	AdminToken  string
	SweepBatch  int
}

func NewServer(log *zap.Logger, engine *challenge.Engine, o Options) *Server {
	if o.SweepBatch <= 0 {
		o.SweepBatch = 100
	}
	return &Server{
		log:         log,
		engine:      engine,
		registry:    o.Registry,
		evidence:    o.Evidence,
		ws:          o.WS,
		tournaments: o.Tournaments,
		adminToken:  o.AdminToken,
		sweepBatch:  o.SweepBatch,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if s.ws != nil {
		r.Handle("/ws", s.ws)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Put("/users/me", s.putProfile)

			r.Post("/challenges", s.create)
			r.Get("/challenges", s.listMine)
			r.Get("/challenges/{id}", s.status)
			r.Post("/challenges/{id}/respond", s.respond)
			r.Post("/challenges/{id}/join", s.join)
			r.Post("/challenges/{id}/ready", s.ready)
			r.Post("/challenges/{id}/cancel", s.cancel)
			r.Post("/challenges/{id}/scorecards", s.scorecard)
			r.Post("/challenges/{id}/evidence", s.uploadEvidence)
			r.Post("/challenges/{id}/verifications", s.verification)
			r.Post("/challenges/{id}/proofs", s.proof)
			r.Post("/challenges/{id}/claim", s.claim)
			r.Post("/challenges/{id}/disputes", s.dispute)

			if s.tournaments != nil {
				r.Post("/tournaments/{id}/entries", s.enterTournament)
			}
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireUser, s.requireAdmin)

			r.Get("/disputes", s.listDisputes)
			r.Post("/disputes/{id}/review", s.reviewDispute)
			r.Post("/disputes/{id}/resolve", s.resolveDispute)
			r.Post("/challenges/{id}/resolve", s.resolveChallenge)
			r.Post("/sweep", s.sweep)

			if s.tournaments != nil {
				r.Post("/tournaments/{id}/distribute", s.distributeTournament)
				r.Post("/tournaments/{id}/cancel", s.cancelTournament)
			}
		})
	})
	return r
}

type userKey struct{}

type identity struct {
	ID       string
	Username string
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identity{ID: r.Header.Get(HeaderUserID), Username: r.Header.Get(HeaderUsername)}
		if id.ID == "" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "missing user", Code: "unauthenticated"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(HeaderAdminToken)
		if s.adminToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) != 1 {
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "admin only", Code: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFrom(r *http.Request) identity {
	id, _ := r.Context().Value(userKey{}).(identity)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("requestId", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, status, body)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json", Code: "invalid_input"})
		return false
	}
	return true
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.ProfileRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "username required", Code: "invalid_input"})
		return
	}
	u := directory.User{ID: userFrom(r).ID, Username: req.Username, PlatformUsernames: req.PlatformUsernames}
	if err := s.registry.Upsert(r.Context(), u); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateChallengeRequest
	if !decode(w, r, &req) {
		return
	}
	me := userFrom(r)
	c, err := s.engine.Create(r.Context(), challenge.CreateRequest{
		ChallengerUID:      me.ID,
		ChallengerUsername: me.Username,
		Opponents:          req.Opponents,
		Game:               req.Game,
		Platform:           req.Platform,
		Stake:              req.Stake,
		IsPublic:           req.IsPublic,
		PlatformUsernames:  req.PlatformUsernames,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) listMine(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out, err := s.engine.ListForUser(r.Context(), userFrom(r).ID, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// status também aplica forfeit de prazos vencidos (checagem preguiçosa no poll)
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	v, err := s.engine.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request) {
	var req dto.RespondRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := s.engine.Respond(r.Context(), chi.URLParam(r, "id"), challenge.RespondRequest{
		UID:               userFrom(r).ID,
		Accept:            req.Accept,
		PlatformUsernames: req.PlatformUsernames,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) join(w http.ResponseWriter, r *http.Request) {
	var req dto.JoinRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	me := userFrom(r)
	c, err := s.engine.JoinPublic(r.Context(), chi.URLParam(r, "id"), challenge.JoinRequest{
		UID:               me.ID,
		Username:          me.Username,
		PlatformUsernames: req.PlatformUsernames,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	c, err := s.engine.MarkReady(r.Context(), chi.URLParam(r, "id"), userFrom(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	c, err := s.engine.Cancel(r.Context(), chi.URLParam(r, "id"), userFrom(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) scorecard(w http.ResponseWriter, r *http.Request) {
	var req dto.ScorecardRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := s.engine.SubmitScorecard(r.Context(), chi.URLParam(r, "id"), challenge.ScorecardRequest{
		UID:               userFrom(r).ID,
		ScoreA:            req.ScoreA,
		ScoreB:            req.ScoreB,
		PlatformUsernames: req.PlatformUsernames,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// uploadEvidence recebe imagens em multipart (campo "images") e devolve as URLs
// para usar em verifications/proofs
func (s *Server) uploadEvidence(w http.ResponseWriter, r *http.Request) {
	if s.evidence == nil {
		writeJSON(w, http.StatusNotImplemented, dto.ErrorResponse{Error: "evidence storage not configured"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid multipart body", Code: "invalid_input"})
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.engine.Get(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "no images", Code: "invalid_input"})
		return
	}
	resp := dto.EvidenceUploadResponse{}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		url, err := s.evidence.Put(r.Context(), id, userFrom(r).ID, fh.Header.Get("Content-Type"), fh.Size, f)
		f.Close()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp.URLs = append(resp.URLs, url)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) verification(w http.ResponseWriter, r *http.Request) {
	s.evidenceSubmit(w, r, s.engine.SubmitVerification)
}

func (s *Server) proof(w http.ResponseWriter, r *http.Request) {
	s.evidenceSubmit(w, r, s.engine.SubmitProof)
}

func (s *Server) evidenceSubmit(w http.ResponseWriter, r *http.Request,
	submit func(context.Context, string, challenge.EvidenceRequest) (*challenge.Challenge, error)) {
	var req dto.EvidenceRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := submit(r.Context(), chi.URLParam(r, "id"), challenge.EvidenceRequest{
		UID:     userFrom(r).ID,
		Images:  req.Images,
		Context: req.Context,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.ClaimReward(r.Context(), chi.URLParam(r, "id"), userFrom(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) dispute(w http.ResponseWriter, r *http.Request) {
	var req dto.DisputeRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := s.engine.RaiseDispute(r.Context(), chi.URLParam(r, "id"), challenge.DisputeRequest{
		UID:      userFrom(r).ID,
		Reason:   req.Reason,
		Evidence: req.Evidence,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) listDisputes(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.ListDisputes(r.Context(), challenge.DisputeStatus(r.URL.Query().Get("status")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) reviewDispute(w http.ResponseWriter, r *http.Request) {
	var req dto.ReviewRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := s.engine.ReviewDispute(r.Context(), chi.URLParam(r, "id"), userFrom(r).ID, req.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) resolveDispute(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, s.engine.ResolveDispute)
}

func (s *Server) resolveChallenge(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, s.engine.ResolveChallenge)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, string, challenge.ResolveRequest) (*challenge.Dispute, *challenge.Challenge, error)) {
	var req dto.ResolveRequest
	if !decode(w, r, &req) {
		return
	}
	d, c, err := fn(r.Context(), chi.URLParam(r, "id"), challenge.ResolveRequest{
		AdminID:        userFrom(r).ID,
		Resolution:     challenge.Resolution(req.Resolution),
		WinnerUsername: req.WinnerUsername,
		Notes:          req.Notes,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ResolveResponse{Dispute: d, Challenge: c})
}

func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.Sweep(r.Context(), s.sweepBatch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SweepResponse{Forfeited: n})
}
