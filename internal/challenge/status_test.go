package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		path     Path
		want     bool
	}{
		{StatusPending, StatusReadyPending, "", true},
		{StatusPending, StatusCancelled, PathCancel, true},
		{StatusPending, StatusActive, "", false},
		{StatusReadyPending, StatusActive, "", true},
		{StatusActive, StatusScorecardPending, PathScorecard, true},
		{StatusActive, StatusCompleted, PathProof, true},
		{StatusActive, StatusAIConflict, PathProof, true},
		{StatusScorecardPending, StatusCompleted, PathForfeit, true},
		{StatusScorecardPending, StatusScorecardConflict, PathScorecard, true},
		{StatusScorecardConflict, StatusAIVerificationPending, PathVerification, true},
		{StatusScorecardConflict, StatusCompleted, PathScorecard, false},
		{StatusScorecardConflict, StatusCompleted, PathDispute, true},
		{StatusAIVerificationPending, StatusAIConflict, PathVerification, true},
		{StatusAIConflict, StatusCompleted, PathVerification, false},
		{StatusAIConflict, StatusCompleted, PathDispute, true},
		{StatusCompleted, StatusActive, PathDispute, false},
		{StatusCancelled, StatusPending, "", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to, tc.path), "%s -> %s via %q", tc.from, tc.to, tc.path)
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	c := &Challenge{Status: StatusCompleted}
	err := c.transition(StatusActive, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusCompleted, c.Status)
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusAIConflict.Terminal())
}

func TestCheckInvariants(t *testing.T) {
	c := &Challenge{ID: "c1", Status: StatusCompleted}
	assert.Error(t, checkInvariants(c), "completed without settlement")

	c.RewardClaimed = true
	c.Settlement = &Settlement{Outcome: OutcomeWin}
	assert.ErrorIs(t, checkInvariants(c), ErrWinnerUnresolved)

	c.Settlement.Outcome = OutcomeDraw
	assert.NoError(t, checkInvariants(c))

	name := "alpha"
	c.Settlement.Outcome = OutcomeWin
	c.Winner, c.WinnerUID = &name, "u1"
	assert.NoError(t, checkInvariants(c))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrVerificationUnavailable))
	assert.False(t, Retryable(ErrInsufficientFunds))
	assert.False(t, Retryable(ErrWinnerUnresolved))
	assert.False(t, Retryable(nil))
}
