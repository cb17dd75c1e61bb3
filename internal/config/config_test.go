package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	cfg := Load()

	assert.Equal(t, "dynamo", cfg.StoreBackend)
	assert.Equal(t, 5*time.Second, cfg.Outreach.CallPollInterval)
	assert.Equal(t, 72*time.Hour, cfg.Outreach.EmailResponseTimeout)
	assert.Equal(t, 336*time.Hour, cfg.Outreach.ConsentTokenTTL)
	assert.True(t, cfg.AttestNegativeOutcomes)
	assert.Equal(t, map[string]int{"free": 3, "pro": 50, "enterprise": 0}, cfg.TierLimits)
	assert.Equal(t, "employer_email_verifications", cfg.DynamoTables.EmailVerifications)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv("CALL_POLL_INTERVAL", "2s")
	t.Setenv("ATTEST_NEGATIVE_OUTCOMES", "false")
	t.Setenv("TIER_LIMITS", "free:1,team:10")
	t.Setenv("PUBLIC_BASE_URL", "https://verify.example.com/")

	cfg := Load()
	assert.Equal(t, 2*time.Second, cfg.Outreach.CallPollInterval)
	assert.False(t, cfg.AttestNegativeOutcomes)
	assert.Equal(t, map[string]int{"free": 1, "team": 10}, cfg.TierLimits)
	assert.Equal(t, "https://verify.example.com", cfg.PublicBaseURL)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
tierLimits:
  free: 5
  pro: 100
outreach:
  workers: 8
  emailResponseTimeout: 48h
attestNegativeOutcomes: false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	t.Setenv(configPathEnv, path)
	t.Setenv("OUTREACH_WORKERS", "")

	cfg := Load()
	assert.Equal(t, map[string]int{"free": 5, "pro": 100}, cfg.TierLimits)
	assert.Equal(t, 8, cfg.Outreach.Workers)
	assert.Equal(t, 48*time.Hour, cfg.Outreach.EmailResponseTimeout)
	assert.False(t, cfg.AttestNegativeOutcomes)

	t.Setenv("OUTREACH_WORKERS", "2")
	assert.Equal(t, 2, Load().Outreach.Workers)
}

func TestParseTierLimits_SkipsMalformed(t *testing.T) {
	got := ParseTierLimits("free:3, PRO:50,broken,neg:-1,x:y,:4")
	assert.Equal(t, map[string]int{"free": 3, "pro": 50}, got)
}
