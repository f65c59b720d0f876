package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
agents:
  pm:
    type: product_manager
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultStateDir, cfg.StateDir)
	assert.Equal(t, DefaultPollIntervalSeconds, cfg.Defaults.PollIntervalSeconds)
	assert.Equal(t, DefaultMaxRetries, cfg.Defaults.MaxRetries)
}

func TestLoadRejectsEmptyAgents(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9000
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no agents configured")
}

func TestLoadRejectsMissingType(t *testing.T) {
	path := writeConfigFile(t, `
agents:
  mystery: {}
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no type")
}

func TestRuntimeSettingsMerge(t *testing.T) {
	path := writeConfigFile(t, `
defaults:
  poll_interval_seconds: 60
  max_retries: 5
  retry_backoff_seconds: 2.5
agents:
  pm:
    type: product_manager
    poll_interval_seconds: 15
  dev:
    type: developer
    config:
      github_org: acme
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	// Per-agent override wins, remaining values fall through to defaults.
	pmSettings := cfg.RuntimeSettingsFor("pm")
	assert.Equal(t, 15*time.Second, pmSettings.PollInterval)
	assert.Equal(t, 5, pmSettings.MaxRetries)
	assert.Equal(t, 2500*time.Millisecond, pmSettings.RetryBackoff)

	devSettings := cfg.RuntimeSettingsFor("dev")
	assert.Equal(t, 60*time.Second, devSettings.PollInterval)
	assert.Equal(t, "acme", StringSetting(devSettings.Settings, "github_org", ""))
}

func TestRuntimeSettingsFallBackToConstants(t *testing.T) {
	cfg := &Config{Agents: map[string]AgentConfig{"pm": {Type: AgentTypeProductManager}}}

	settings := cfg.RuntimeSettingsFor("pm")
	assert.Equal(t, time.Duration(DefaultPollIntervalSeconds)*time.Second, settings.PollInterval)
	assert.Equal(t, DefaultMaxRetries, settings.MaxRetries)
	assert.Equal(t, time.Duration(DefaultRetryBackoffSeconds)*time.Second, settings.RetryBackoff)
}

func TestIsEnabled(t *testing.T) {
	enabled := true
	disabled := false

	assert.True(t, (&AgentConfig{}).IsEnabled(), "nil means enabled")
	assert.True(t, (&AgentConfig{Enabled: &enabled}).IsEnabled())
	assert.False(t, (&AgentConfig{Enabled: &disabled}).IsEnabled())
}

func TestSettingHelpers(t *testing.T) {
	settings := map[string]any{
		"name":    "alpha",
		"count":   3,
		"ratio":   2.0,
		"enabled": false,
	}

	assert.Equal(t, "alpha", StringSetting(settings, "name", "fallback"))
	assert.Equal(t, "fallback", StringSetting(settings, "missing", "fallback"))
	assert.Equal(t, 3, IntSetting(settings, "count", 9))
	assert.Equal(t, 2, IntSetting(settings, "ratio", 9), "float64 accepted for hand-edited files")
	assert.Equal(t, 9, IntSetting(settings, "missing", 9))
	assert.False(t, BoolSetting(settings, "enabled", true))
	assert.True(t, BoolSetting(settings, "missing", true))
}

func TestGetSecretPrefersDecryptedStore(t *testing.T) {
	t.Setenv("AGENTCO_TEST_CRED", "from-env")
	SetSecretsForTest(map[string]string{"AGENTCO_TEST_CRED": "from-file"})
	t.Cleanup(func() { SetSecretsForTest(nil) })

	assert.Equal(t, "from-file", GetSecret("AGENTCO_TEST_CRED"))

	SetSecretsForTest(nil)
	assert.Equal(t, "from-env", GetSecret("AGENTCO_TEST_CRED"))
}
