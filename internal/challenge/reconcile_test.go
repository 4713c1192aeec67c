package challenge

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseScore(t *testing.T) {
	cases := []struct {
		raw  string
		a, b int
		ok   bool
	}{
		{"6-7", 6, 7, true},
		{"Final 6 - 7 (OT)", 6, 7, true},
		{"score 3:1", 3, 1, true},
		{"2 to 0", 2, 0, true},
		{"10 x 9", 10, 9, true},
		{"round 2, final 4-1", 4, 1, true},
		{"no digits here", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		a, b, ok := ParseScore(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		if tc.ok {
			assert.Equal(t, tc.a, a, tc.raw)
			assert.Equal(t, tc.b, b, tc.raw)
		}
	}
}

func TestScoreWinner(t *testing.T) {
	w, ok := ScoreWinner("6-7", []string{"alpha", "bravo"})
	assert.True(t, ok)
	assert.Equal(t, "bravo", w)

	w, ok = ScoreWinner("3-1", []string{"alpha", "bravo"})
	assert.True(t, ok)
	assert.Equal(t, "alpha", w)

	_, ok = ScoreWinner("2-2", []string{"alpha", "bravo"})
	assert.False(t, ok, "tie has no winner")

	_, ok = ScoreWinner("6-7", []string{"alpha"})
	assert.False(t, ok, "needs two identities")
}

func TestCorrectVerdictScoreBeatsNarrative(t *testing.T) {
	v := VerificationResult{
		ClaimedWinner: "alpha",
		RawSignals:    Signals{RawScoreText: "6-7", DetectedIdentities: []string{"alpha", "bravo"}},
	}
	CorrectVerdict(&v)
	assert.Equal(t, "bravo", v.ClaimedWinner)
	assert.True(t, v.RawSignals.Corrected)
	assert.Equal(t, "alpha", v.RawSignals.OriginalClaim)

	same := VerificationResult{
		ClaimedWinner: "Bravo",
		RawSignals:    Signals{RawScoreText: "6-7", DetectedIdentities: []string{"alpha", "bravo"}},
	}
	CorrectVerdict(&same)
	assert.Equal(t, "Bravo", same.ClaimedWinner)
	assert.False(t, same.RawSignals.Corrected)

	noScore := VerificationResult{ClaimedWinner: "alpha", RawSignals: Signals{RawScoreText: "GG"}}
	CorrectVerdict(&noScore)
	assert.Equal(t, "alpha", noScore.ClaimedWinner)
}

func TestClaimsAgree(t *testing.T) {
	claim := func(w string) VerificationResult { return VerificationResult{ClaimedWinner: w} }

	assert.True(t, ClaimsAgree(claim("Alpha "), claim("alpha")))
	assert.False(t, ClaimsAgree(claim("alpha"), claim("bravo")))
	assert.False(t, ClaimsAgree(claim(UnknownWinner), claim(UnknownWinner)))
	assert.False(t, ClaimsAgree(claim(""), claim("alpha")))
}

func TestScorecardsAgree(t *testing.T) {
	assert.True(t, ScorecardsAgree(Scorecard{ScoreA: 3, ScoreB: 1}, Scorecard{ScoreA: 3, ScoreB: 1}))
	assert.False(t, ScorecardsAgree(Scorecard{ScoreA: 3, ScoreB: 1}, Scorecard{ScoreA: 1, ScoreB: 3}))
}

func TestScorecardOutcome(t *testing.T) {
	c := &Challenge{
		Challenger: Participant{UID: "u1", Username: "alpha"},
		Opponents:  []Opponent{{Participant: Participant{UID: "u2", Username: "bravo"}, Status: OpponentAccepted}},
	}
	w, ok := scorecardOutcome(c, Scorecard{ScoreA: 2, ScoreB: 1})
	assert.True(t, ok)
	assert.Equal(t, "u1", w.UID)

	w, ok = scorecardOutcome(c, Scorecard{ScoreA: 0, ScoreB: 1})
	assert.True(t, ok)
	assert.Equal(t, "u2", w.UID)

	w, ok = scorecardOutcome(c, Scorecard{ScoreA: 1, ScoreB: 1})
	assert.True(t, ok)
	assert.Nil(t, w)

	c.Opponents[0].Status = OpponentDeclined
	_, ok = scorecardOutcome(c, Scorecard{ScoreA: 1, ScoreB: 0})
	assert.False(t, ok)
}

func TestCorroborated(t *testing.T) {
	p := &Participant{Username: "alpha", PlatformUsernames: map[string]string{"psn": "AlphaWolf99"}}

	assert.True(t, corroborated(p, []string{"ALPHA"}))
	assert.True(t, corroborated(p, []string{"bravo", "[clan] alphawolf99"}))
	assert.False(t, corroborated(p, []string{"bravo", ""}))
	assert.False(t, corroborated(&Participant{Username: "al"}, []string{"alien"}), "short names need exact match")
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
