package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	policy, err := ParsePolicy([]byte(`
comparison:
  tolerance:
    absolute: 0.5
  keys:
    latency:
      relative: 0.1
promotion:
  firstBatch: false
  allPass: true
`))
	require.NoError(t, err)

	assert.Equal(t, 0.5, policy.Comparison.ToleranceFor("score").Absolute)
	assert.Equal(t, 0.1, policy.Comparison.ToleranceFor("latency").Relative)
	assert.Equal(t, 0.0, policy.Comparison.ToleranceFor("latency").Absolute)
	assert.False(t, policy.Promotion.FirstBatch)
	assert.True(t, policy.Promotion.AllPass)
}

func TestParsePolicyRejectsUnknownAndNegative(t *testing.T) {
	_, err := ParsePolicy([]byte("comparison:\n  tolerence: {}\n"))
	assert.Error(t, err)

	_, err = ParsePolicy([]byte("comparison:\n  tolerance:\n    absolute: -1\n"))
	assert.Error(t, err)
}

func TestLoadPolicyDefaults(t *testing.T) {
	policy, err := LoadPolicy("")
	require.NoError(t, err)
	assert.True(t, policy.Promotion.FirstBatch)
	assert.NotNil(t, policy.Comparison.Keys)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("promotion:\n  allPass: true\n"), 0o644))
	policy, err = LoadPolicy(path)
	require.NoError(t, err)
	assert.True(t, policy.Promotion.AllPass)
	assert.True(t, policy.Promotion.FirstBatch)
}

func TestQueueCfgFromEnv(t *testing.T) {
	t.Setenv("JOB_MAX_ATTEMPTS", "7")
	t.Setenv("JOB_LEASE_SEC", "bogus")
	t.Setenv("JOB_BACKOFF_BASE_MS", "250")

	cfg := NewQueueCfg()
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.LeaseDuration)
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffBase)
}
