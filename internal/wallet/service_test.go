package wallet_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/internal/repo/memory"
	"github.com/radieske/challenge-settlement-platform/internal/wallet"
	"github.com/radieske/challenge-settlement-platform/pkg/contracts/events"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type mockGateway struct{ mock.Mock }

func (m *mockGateway) Deposit(ctx context.Context, userID string, amount decimal.Decimal, metadata map[string]any) (string, error) {
	args := m.Called(ctx, userID, amount.String(), metadata)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Payout(ctx context.Context, payoutID, userID string, amount decimal.Decimal, destination string) (*wallet.PayoutResult, error) {
	args := m.Called(ctx, payoutID, userID, amount.String(), destination)
	res, _ := args.Get(0).(*wallet.PayoutResult)
	return res, args.Error(1)
}

type capturePublisher struct {
	mu  sync.Mutex
	evs []events.WithdrawalRequested
}

func (c *capturePublisher) PublishWithdrawal(_ context.Context, ev events.WithdrawalRequested) error {
	c.mu.Lock()
	c.evs = append(c.evs, ev)
	c.mu.Unlock()
	return nil
}

func newService(t *testing.T, gw wallet.Gateway) (*wallet.Service, *memory.Store, *capturePublisher) {
	t.Helper()
	store := memory.New()
	pub := &capturePublisher{}
	return wallet.NewService(nil, store, ledger.New(d("100")), gw, pub), store, pub
}

func TestBalanceCreatesWalletWithOpeningDeposit(t *testing.T) {
	svc, _, _ := newService(t, &mockGateway{})
	ctx := context.Background()

	w, err := svc.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("100")))

	again, err := svc.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)

	txs, err := svc.History(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.TypeDeposit, txs[0].Type)
}

func TestDepositIsIdempotentPerExternalID(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Deposit", mock.Anything, "u1", "25", mock.Anything).Return("ext-1", nil)
	svc, store, _ := newService(t, gw)
	ctx := context.Background()

	res, err := svc.Deposit(ctx, "u1", d("25"), map[string]any{"method": "pix"})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, "ext-1", res.Transaction.Metadata["externalId"])
	assert.Equal(t, "pix", res.Transaction.Metadata["method"])

	// gateway devolve o mesmo id num retry do cliente
	res, err = svc.Deposit(ctx, "u1", d("25"), nil)
	require.NoError(t, err)
	assert.True(t, res.Replayed)

	w, err := store.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("125")))
	gw.AssertNumberOfCalls(t, "Deposit", 2)
}

func TestDepositGatewayFailure(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Deposit", mock.Anything, "u1", "5", mock.Anything).Return("", errors.New("connection refused"))
	svc, store, _ := newService(t, gw)

	_, err := svc.Deposit(context.Background(), "u1", d("5"), nil)
	assert.ErrorIs(t, err, wallet.ErrGateway)

	_, err = store.GetWallet(context.Background(), "u1")
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

func TestDepositRejectsNonPositive(t *testing.T) {
	svc, _, _ := newService(t, &mockGateway{})
	_, err := svc.Deposit(context.Background(), "u1", d("0"), nil)
	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
}

func TestAmountsMustBeWholeCents(t *testing.T) {
	gw := &mockGateway{}
	svc, _, pub := newService(t, gw)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, "u1", d("10.005"), nil)
	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
	_, err = svc.Withdraw(ctx, "u1", d("0.001"), "pix:u1@bank", "")
	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
	gw.AssertNumberOfCalls(t, "Deposit", 0)
	assert.Empty(t, pub.evs)

	// zeros à direita continuam valendo centavos
	p, err := svc.Withdraw(ctx, "u1", d("12.500"), "pix:u1@bank", "")
	require.NoError(t, err)
	assert.Equal(t, "12.50", p.Amount.StringFixed(2))
}

func TestWithdrawDebitsAndQueuesPayout(t *testing.T) {
	svc, store, pub := newService(t, &mockGateway{})
	ctx := context.Background()

	p, err := svc.Withdraw(ctx, "u1", d("40"), "pix:u1@bank", "req-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.PayoutPending, p.Status)

	w, err := store.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("60")))

	stored, err := store.GetPayout(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.TransactionID, stored.TransactionID)

	require.Len(t, pub.evs, 1)
	assert.Equal(t, p.ID, pub.evs[0].PayoutID)
	assert.Equal(t, "40", pub.evs[0].Amount)

	_, err = svc.Withdraw(ctx, "u1", d("40"), "pix:u1@bank", "req-1")
	assert.ErrorIs(t, err, wallet.ErrDuplicateRequest)
	w, _ = store.GetWallet(ctx, "u1")
	assert.True(t, w.Balance.Equal(d("60")), "replayed request must not debit again")
	assert.Len(t, pub.evs, 1)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	svc, _, pub := newService(t, &mockGateway{})

	_, err := svc.Withdraw(context.Background(), "u1", d("150"), "pix:u1@bank", "")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Empty(t, pub.evs)
}

func pendingPayout(t *testing.T, gw wallet.Gateway) (*wallet.PayoutWorker, *memory.Store, events.WithdrawalRequested) {
	t.Helper()
	svc, store, pub := newService(t, gw)
	_, err := svc.Withdraw(context.Background(), "u1", d("30"), "pix:u1@bank", "")
	require.NoError(t, err)
	require.Len(t, pub.evs, 1)
	w := &wallet.PayoutWorker{Store: store, Gateway: gw, Retries: 2, Backoff: time.Millisecond}
	return w, store, pub.evs[0]
}

func TestPayoutWorkerDisburses(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Payout", mock.Anything, mock.Anything, "u1", "30", "pix:u1@bank").
		Return(&wallet.PayoutResult{ExternalID: "po-1", Status: wallet.PayoutDisbursed}, nil)
	w, store, ev := pendingPayout(t, gw)

	var results []string
	w.OnResult = func(s string) { results = append(results, s) }
	require.NoError(t, w.Handle(context.Background(), ev))

	p, err := store.GetPayout(context.Background(), ev.PayoutID)
	require.NoError(t, err)
	assert.Equal(t, wallet.PayoutDisbursed, p.Status)
	assert.Equal(t, "po-1", p.ExternalID)
	assert.Equal(t, 1, p.Attempts)
	assert.Equal(t, []string{"disbursed"}, results)

	// redelivery é no-op
	require.NoError(t, w.Handle(context.Background(), ev))
	gw.AssertNumberOfCalls(t, "Payout", 1)
	assert.Equal(t, ev.PayoutID, gw.Calls[0].Arguments.String(1))
}

func TestPayoutWorkerRetriesThenGivesUp(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Payout", mock.Anything, mock.Anything, "u1", "30", "pix:u1@bank").Return(nil, errors.New("503"))
	w, store, ev := pendingPayout(t, gw)

	err := w.Handle(context.Background(), ev)
	require.ErrorIs(t, err, wallet.ErrGateway)
	gw.AssertNumberOfCalls(t, "Payout", 3)

	p, err := store.GetPayout(context.Background(), ev.PayoutID)
	require.NoError(t, err)
	assert.Equal(t, wallet.PayoutPending, p.Status)
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, "503", p.LastError)
}

func TestPayoutWorkerRecoversOnRetry(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Payout", mock.Anything, mock.Anything, "u1", "30", "pix:u1@bank").Return(nil, errors.New("timeout")).Once()
	gw.On("Payout", mock.Anything, mock.Anything, "u1", "30", "pix:u1@bank").
		Return(&wallet.PayoutResult{ExternalID: "po-2", Status: wallet.PayoutFailed, Reason: "invalid key"}, nil)
	w, store, ev := pendingPayout(t, gw)

	require.NoError(t, w.Handle(context.Background(), ev))
	p, err := store.GetPayout(context.Background(), ev.PayoutID)
	require.NoError(t, err)
	assert.Equal(t, wallet.PayoutFailed, p.Status)
	assert.Equal(t, "invalid key", p.LastError)
	assert.Equal(t, 2, p.Attempts)
}
