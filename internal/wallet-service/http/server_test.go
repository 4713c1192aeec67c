package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/internal/repo/memory"
	"github.com/radieske/challenge-settlement-platform/internal/wallet"
	"github.com/radieske/challenge-settlement-platform/internal/wallet-service/dto"
)

type stubGateway struct{}

func (stubGateway) Deposit(_ context.Context, userID string, amount decimal.Decimal, _ map[string]any) (string, error) {
	return "ext-" + userID + "-" + amount.String(), nil
}

func (stubGateway) Payout(context.Context, string, string, decimal.Decimal, string) (*wallet.PayoutResult, error) {
	return &wallet.PayoutResult{Status: wallet.PayoutDisbursed}, nil
}

func newRouter() http.Handler {
	svc := wallet.NewService(zap.NewNop(), memory.New(), ledger.New(decimal.NewFromInt(50)), stubGateway{}, nil)
	return NewServer(zap.NewNop(), svc).Router()
}

func call(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWalletRoutes(t *testing.T) {
	h := newRouter()

	rec := call(t, h, http.MethodGet, "/v1/wallet/", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var wr dto.WalletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wr))
	assert.True(t, wr.Balance.Equal(decimal.NewFromInt(50)))

	rec = call(t, h, http.MethodPost, "/v1/wallet/deposits", "u1", `{"amount":"10.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var dr dto.DepositResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dr))
	assert.True(t, dr.Balance.Equal(decimal.RequireFromString("60.5")))

	rec = call(t, h, http.MethodPost, "/v1/wallet/withdrawals", "u1", `{"amount":"20","destination":"pix:me","requestId":"r1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = call(t, h, http.MethodPost, "/v1/wallet/withdrawals", "u1", `{"amount":"20","destination":"pix:me","requestId":"r1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h, http.MethodGet, "/v1/wallet/transactions?limit=10", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []ledger.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 3)
	assert.Equal(t, ledger.TypeWithdrawal, txs[0].Type)
}

func TestWalletErrors(t *testing.T) {
	h := newRouter()

	assert.Equal(t, http.StatusUnauthorized, call(t, h, http.MethodGet, "/v1/wallet/", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, call(t, h, http.MethodPost, "/v1/wallet/deposits", "u1", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, call(t, h, http.MethodPost, "/v1/wallet/deposits", "u1", `{"amount":"-1"}`).Code)
	assert.Equal(t, http.StatusPaymentRequired,
		call(t, h, http.MethodPost, "/v1/wallet/withdrawals", "u1", `{"amount":"500","destination":"pix:me"}`).Code)

	txs := call(t, h, http.MethodGet, "/v1/wallet/transactions", "u2", "")
	assert.Equal(t, "[]\n", txs.Body.String())
}
