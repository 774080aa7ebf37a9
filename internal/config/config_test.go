package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	t.Setenv("CT_DB_DRIVER", "memory")
	t.Setenv("CT_SOURCES_RETRY_MAX_ATTEMPTS", "5")
	cfg, err := Load("", true)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.Equal(t, 5, cfg.Sources.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Sources.Retry.BaseDelay)
	assert.Equal(t, "0 0 */4 * * *", cfg.Cron.Aggregation)
	assert.Equal(t, time.Minute, cfg.Cron.ReminderInterval)
	assert.True(t, cfg.Sources.CodeChef.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: prod
sources:
  leetcode:
    enabled: false
mail:
  enabled: true
  host: smtp.example.com
`), 0o600))
	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.App.Env)
	assert.False(t, cfg.Sources.Leetcode.Enabled)
	assert.True(t, cfg.Sources.Codeforces.Enabled)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
	assert.Equal(t, 587, cfg.Mail.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	assert.Error(t, err)
}
