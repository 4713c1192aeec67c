package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// echo responde com o nome do upstream e o caminho recebido
func echo(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.URL.Path+" "+r.Header.Get("X-User-ID"))
	}))
}

func TestRouterRewritesToVersionedPaths(t *testing.T) {
	ch, wl := echo("challenge"), echo("wallet")
	defer ch.Close()
	defer wl.Close()

	h, err := NewRouter(zap.NewNop(), Upstreams{Challenge: ch.URL, Wallet: wl.URL})
	require.NoError(t, err)
	gw := httptest.NewServer(h)
	defer gw.Close()

	cases := map[string]string{
		"/api/challenges":            "challenge /v1/challenges u1",
		"/api/challenges/c1/respond": "challenge /v1/challenges/c1/respond u1",
		"/api/users/me":              "challenge /v1/users/me u1",
		"/api/admin/disputes":        "challenge /v1/admin/disputes u1",
		"/api/wallet":                "wallet /v1/wallet u1",
		"/api/wallet/transactions":   "wallet /v1/wallet/transactions u1",
	}
	for path, want := range cases {
		req, _ := http.NewRequest(http.MethodGet, gw.URL+path, nil)
		req.Header.Set("X-User-ID", "u1")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err, path)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, want, string(body), path)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestRouterPreflightAndUpstreamDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	h, err := NewRouter(zap.NewNop(), Upstreams{Challenge: downURL, Wallet: downURL})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/challenges", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/wallet", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
