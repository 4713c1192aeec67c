package simulator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/challenge-settlement-platform/internal/challenge"
	"github.com/radieske/challenge-settlement-platform/internal/simulator"
	"github.com/radieske/challenge-settlement-platform/internal/verification"
	"github.com/radieske/challenge-settlement-platform/internal/wallet"
)

func start(t *testing.T, roll float64) *httptest.Server {
	t.Helper()
	s := simulator.NewServer(zap.NewNop(), nil)
	s.Rand = func() float64 { return roll }
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzeServesVerificationClient(t *testing.T) {
	srv := start(t, 0)
	client := verification.NewClient(srv.URL, time.Second)

	a, err := client.Analyze(context.Background(), challenge.AnalyzeRequest{
		ChallengeID:  "c1",
		SubmittedBy:  "u1",
		Images:       []string{"memory://c1/u1/a.png"},
		Participants: []string{"AlphaWolf99", "BravoKing"},
		Context:      map[string]string{"winner": "BravoKing", "score": "1-3", "confidence": "0.55"},
	})
	require.NoError(t, err)
	assert.Equal(t, "BravoKing", a.ClaimedWinner)
	assert.Equal(t, "1-3", a.RawScoreText)
	assert.InDelta(t, 0.55, a.Confidence, 1e-9)
	assert.Equal(t, []string{"AlphaWolf99", "BravoKing"}, a.DetectedIdentities)
}

func TestAnalyzeDefaultsToFirstParticipant(t *testing.T) {
	srv := start(t, 0)
	a, err := verification.NewClient(srv.URL, time.Second).Analyze(context.Background(), challenge.AnalyzeRequest{
		Images:       []string{"x"},
		Participants: []string{"AlphaWolf99", "BravoKing"},
	})
	require.NoError(t, err)
	assert.Equal(t, "AlphaWolf99", a.ClaimedWinner)
	assert.InDelta(t, 0.9, a.Confidence, 1e-9)
}

func TestAnalyzeWithoutImagesIsUnavailable(t *testing.T) {
	srv := start(t, 0)
	_, err := verification.NewClient(srv.URL, time.Second).Analyze(context.Background(), challenge.AnalyzeRequest{
		Participants: []string{"a"},
	})
	assert.ErrorIs(t, err, challenge.ErrVerificationUnavailable)
}

func TestGatewayDepositAndPayout(t *testing.T) {
	cases := []struct {
		roll   float64
		status wallet.PayoutStatus
	}{
		{0.1, wallet.PayoutDisbursed},
		{0.85, wallet.PayoutPending},
		{0.95, wallet.PayoutFailed},
	}
	for _, tc := range cases {
		srv := start(t, tc.roll)
		gw := wallet.NewHTTPGateway(srv.URL, time.Second)

		id, err := gw.Deposit(context.Background(), "u1", decimal.NewFromInt(25), nil)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(id, "DEP-"))

		res, err := gw.Payout(context.Background(), "p-"+string(tc.status), "u1", decimal.NewFromInt(10), "pix:u1")
		require.NoError(t, err)
		assert.Equal(t, tc.status, res.Status)
	}
}

func TestGatewayRejectsInvalidAmount(t *testing.T) {
	srv := start(t, 0)
	resp, err := http.Post(srv.URL+"/payouts", "application/json",
		strings.NewReader(`{"userId":"u1","amount":"-5","destination":"pix"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPayoutReplaysSameResultForSameID(t *testing.T) {
	s := simulator.NewServer(zap.NewNop(), nil)
	rolls := []float64{0.1, 0.95}
	s.Rand = func() float64 {
		r := rolls[0]
		rolls = rolls[1:]
		return r
	}
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()
	gw := wallet.NewHTTPGateway(srv.URL, time.Second)
	ctx := context.Background()

	first, err := gw.Payout(ctx, "p-42", "u1", decimal.NewFromInt(10), "pix:u1")
	require.NoError(t, err)
	again, err := gw.Payout(ctx, "p-42", "u1", decimal.NewFromInt(10), "pix:u1")
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, wallet.PayoutDisbursed, again.Status)

	other, err := gw.Payout(ctx, "p-43", "u1", decimal.NewFromInt(10), "pix:u1")
	require.NoError(t, err)
	assert.Equal(t, wallet.PayoutFailed, other.Status)
	assert.NotEqual(t, first.ExternalID, other.ExternalID)
}
