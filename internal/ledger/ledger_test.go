package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/challenge-settlement-platform/internal/ledger"
	"github.com/radieske/challenge-settlement-platform/internal/repo/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func inTx(t *testing.T, s *memory.Store, fn func(tx ledger.Store) error) error {
	t.Helper()
	return s.InLedgerTx(context.Background(), fn)
}

func TestWalletOpeningBalanceIsALedgerEntry(t *testing.T) {
	s := memory.New()
	l := ledger.New(d("50"))

	require.NoError(t, inTx(t, s, func(tx ledger.Store) error {
		w, err := l.Wallet(context.Background(), tx, "u1")
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(d("50")))
		return nil
	}))

	txs, err := s.ListTransactions(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.TypeDeposit, txs[0].Type)
	assert.Equal(t, "opening:u1", txs[0].IdempotencyKey)
}

func TestDebitRejectsInsufficientFunds(t *testing.T) {
	s := memory.New()
	l := ledger.New(d("5"))

	err := inTx(t, s, func(tx ledger.Store) error {
		_, err := l.Debit(context.Background(), tx, ledger.Request{
			UserID: "u1", Amount: d("10"), Type: ledger.TypeChallengeDeduction, IdempotencyKey: "k1",
		})
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// a transação inteira foi desfeita, nem a carteira ficou
	_, err = s.GetWallet(context.Background(), "u1")
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

func TestCreditIsIdempotentPerKey(t *testing.T) {
	s := memory.New()
	l := ledger.New(decimal.Zero)
	req := ledger.Request{UserID: "u1", Amount: d("19"), Type: ledger.TypeChallengeReward, Reference: "c1", IdempotencyKey: "challenge:c1:reward"}

	var first, second *ledger.Result
	require.NoError(t, inTx(t, s, func(tx ledger.Store) error {
		var err error
		first, err = l.Credit(context.Background(), tx, req)
		return err
	}))
	require.NoError(t, inTx(t, s, func(tx ledger.Store) error {
		var err error
		second, err = l.Credit(context.Background(), tx, req)
		return err
	}))

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)

	w, err := s.GetWallet(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("19")), "balance %s", w.Balance)
}

func TestReusedKeyForOtherOperationFails(t *testing.T) {
	s := memory.New()
	l := ledger.New(d("100"))
	ctx := context.Background()

	require.NoError(t, inTx(t, s, func(tx ledger.Store) error {
		_, err := l.Credit(ctx, tx, ledger.Request{UserID: "u1", Amount: d("1"), Type: ledger.TypeRefund, IdempotencyKey: "k"})
		return err
	}))
	err := inTx(t, s, func(tx ledger.Store) error {
		_, err := l.Debit(ctx, tx, ledger.Request{UserID: "u1", Amount: d("1"), Type: ledger.TypeWithdrawal, IdempotencyKey: "k"})
		return err
	})
	assert.ErrorContains(t, err, "reused")
}

func TestAllowNegativeOnlyForAdminAdjustments(t *testing.T) {
	s := memory.New()
	l := ledger.New(decimal.Zero)
	ctx := context.Background()

	err := inTx(t, s, func(tx ledger.Store) error {
		_, err := l.Debit(ctx, tx, ledger.Request{UserID: "u1", Amount: d("3"), Type: ledger.TypeWithdrawal, AllowNegative: true})
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrNegativeBalance)

	require.NoError(t, inTx(t, s, func(tx ledger.Store) error {
		res, err := l.Debit(ctx, tx, ledger.Request{UserID: "u1", Amount: d("3"), Type: ledger.TypeAdminAdjustment, AllowNegative: true})
		if err == nil {
			assert.True(t, res.Balance.Equal(d("-3")))
		}
		return err
	}))
}

func TestInvalidAmounts(t *testing.T) {
	s := memory.New()
	l := ledger.New(decimal.Zero)
	for _, amt := range []string{"0", "-1"} {
		err := inTx(t, s, func(tx ledger.Store) error {
			_, err := l.Credit(context.Background(), tx, ledger.Request{UserID: "u1", Amount: d(amt), Type: ledger.TypeDeposit})
			return err
		})
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount, amt)
	}
}

func TestNetByUserAndSum(t *testing.T) {
	txs := []ledger.Transaction{
		{UserID: "a", Type: ledger.TypeChallengeDeduction, Amount: d("-10")},
		{UserID: "b", Type: ledger.TypeChallengeDeduction, Amount: d("-10")},
		{UserID: "a", Type: ledger.TypeChallengeReward, Amount: d("19")},
		{UserID: "admin", Type: ledger.TypeAdminFee, Amount: d("1")},
	}
	net := ledger.NetByUser(txs, ledger.TypeChallengeReward, ledger.TypeAdminFee)
	assert.True(t, net["a"].Equal(d("19")))
	assert.True(t, net["admin"].Equal(d("1")))
	_, hasB := net["b"]
	assert.False(t, hasB)

	assert.True(t, ledger.Sum(txs).IsZero())
}
