package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadResolvesServicePorts(t *testing.T) {
	t.Setenv("SERVICE_NAME", "challenge-service")
	t.Setenv("HTTP_PORT_CHALLENGE", "9000")

	cfg := Load()
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, "9099", cfg.MetricsPort)
}

func TestLoadSettlementKnobs(t *testing.T) {
	t.Setenv("REWARD_RATIO", "0.9")
	t.Setenv("SCORECARD_WINDOW", "5m")
	t.Setenv("STAKE_FRACTION", "not-a-number")

	cfg := Load()
	assert.Equal(t, "0.9", cfg.Settlement.RewardRatio.String())
	assert.Equal(t, 5*time.Minute, cfg.Settlement.ScorecardWindow)
	assert.Equal(t, "0.5", cfg.Settlement.StakeFraction.String())
	assert.Equal(t, 30*time.Minute, cfg.Settlement.VerificationWindow)
}
