// Package gateway é a borda HTTP: encaminha /api/* para os serviços internos.
package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Upstreams são as URLs base dos serviços
type Upstreams struct {
	Challenge string
	Wallet    string
}

// proxy troca o prefixo público pelo prefixo versionado do serviço
// (ex.: /api/challenges/1 -> /v1/challenges/1)
func proxy(log *zap.Logger, target *url.URL, from, to string) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.Out.URL.Path = to + strings.TrimPrefix(r.In.URL.Path, from)
			r.Out.URL.RawPath = ""
			r.Out.Host = target.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("upstream failed", zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}
}

// NewRouter monta as rotas públicas com CORS
func NewRouter(log *zap.Logger, up Upstreams) (http.Handler, error) {
	challenge, err := url.Parse(up.Challenge)
	if err != nil {
		return nil, err
	}
	wallet, err := url.Parse(up.Wallet)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// challenges, perfil e admin (ex.: /api/challenges/* -> challenge-service /v1/challenges/*)
	mux.Handle("/api/challenges", proxy(log, challenge, "/api", "/v1"))
	mux.Handle("/api/challenges/", proxy(log, challenge, "/api", "/v1"))
	mux.Handle("/api/users/", proxy(log, challenge, "/api", "/v1"))
	mux.Handle("/api/admin/", proxy(log, challenge, "/api", "/v1"))
	mux.Handle("/api/tournaments/", proxy(log, challenge, "/api", "/v1"))

	// status em tempo real
	mux.Handle("/ws", proxy(log, challenge, "", ""))

	// wallet (ex.: /api/wallet/* -> wallet-service /v1/wallet/*)
	mux.Handle("/api/wallet", proxy(log, wallet, "/api", "/v1"))
	mux.Handle("/api/wallet/", proxy(log, wallet, "/api", "/v1"))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return WithCORS(mux), nil
}

func WithCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, X-Username, X-Admin-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
