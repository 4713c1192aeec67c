package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Path {
		case "/deposits":
			assert.Equal(t, "12.5", body["amount"])
			_ = json.NewEncoder(w).Encode(map[string]string{"externalId": "dep-9"})
		case "/payouts":
			assert.Equal(t, "p-1", body["payoutId"])
			if body["destination"] == "bad" {
				_ = json.NewEncoder(w).Encode(map[string]string{"externalId": "po-9", "status": "bounced"})
				return
			}
			_ = json.NewEncoder(w).Encode(PayoutResult{ExternalID: "po-9", Status: PayoutDisbursed})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, time.Second)
	ctx := context.Background()

	id, err := gw.Deposit(ctx, "u1", decimal.RequireFromString("12.5"), nil)
	require.NoError(t, err)
	assert.Equal(t, "dep-9", id)

	res, err := gw.Payout(ctx, "p-1", "u1", decimal.NewFromInt(3), "pix:x")
	require.NoError(t, err)
	assert.Equal(t, PayoutDisbursed, res.Status)

	_, err = gw.Payout(ctx, "p-1", "u1", decimal.NewFromInt(3), "bad")
	assert.ErrorContains(t, err, "unknown status")
}

func TestHTTPGatewayServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPGateway(srv.URL, time.Second).Deposit(context.Background(), "u1", decimal.NewFromInt(1), nil)
	assert.ErrorContains(t, err, "http 502")
}
