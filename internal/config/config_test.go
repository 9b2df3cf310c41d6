package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GAME_ENTRY_FEE", "")
	t.Setenv("GAME_CHOICE_SECONDS", "")
	t.Setenv("VIP_REFERRAL_MULTIPLIER", "")

	cfg := Load()

	assert.Equal(t, 1, cfg.GameEntryFee)
	assert.Equal(t, 2, cfg.GameWinReward)
	assert.Equal(t, 30, cfg.GameWaitSeconds)
	assert.Equal(t, 7, cfg.GameChoiceSeconds)
	assert.InDelta(t, 1.5, cfg.VIPReferralMultiplier, 0.0001)
	assert.Equal(t, "memory", cfg.LedgerBackend)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GAME_ENTRY_FEE", "5")
	t.Setenv("GAME_WIN_REWARD", "9")
	t.Setenv("VIP_REFERRAL_MULTIPLIER", "2.25")
	t.Setenv("MIGRATE_ON_START", "true")

	cfg := Load()

	assert.Equal(t, 5, cfg.GameEntryFee)
	assert.Equal(t, 9, cfg.GameWinReward)
	assert.InDelta(t, 2.25, cfg.VIPReferralMultiplier, 0.0001)
	assert.True(t, cfg.MigrateOnStart)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("GAME_WAIT_SECONDS", "soon")
	t.Setenv("VIP_REFERRAL_MULTIPLIER", "lots")

	cfg := Load()

	assert.Equal(t, 30, cfg.GameWaitSeconds)
	assert.InDelta(t, 1.5, cfg.VIPReferralMultiplier, 0.0001)
}
