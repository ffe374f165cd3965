package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("TEST_MESSENGER_SECRET", "s3cret")

	path := writeConfig(t, `
jwt:
  secret: ${TEST_MESSENGER_SECRET}
messenger:
  poll_interval: 3s
  allow_direct_treat: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 3*time.Second, cfg.Messenger.PollInterval)
	assert.False(t, cfg.Messenger.AllowDirectTreat)
	// untouched keys keep defaults
	assert.True(t, cfg.Messenger.AllowStatusManagement)
	assert.Equal(t, 10, cfg.Messenger.MessagesPerPage)
	assert.Equal(t, 5, cfg.Messenger.SearchLimit)
	assert.Equal(t, time.Minute, cfg.Messenger.UnreadCacheTTL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DB_DRIVER", "sqlite")

	path := writeConfig(t, "jwt:\n  secret: from-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file::memory:?cache=shared", cfg.Database.GetDSN())
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_NormalizesInvalidValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	path := writeConfig(t, "messenger:\n  per_page: 0\n  messages_per_page: -1\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Messenger.PerPage)
	assert.Equal(t, 10, cfg.Messenger.MessagesPerPage)
}

func TestDotEnvCandidates(t *testing.T) {
	assert.Equal(t, []string{".env.local", ".env"}, dotEnvCandidates(""))
	assert.Equal(t, []string{".env.local", ".env"}, dotEnvCandidates("local"))
	assert.Equal(t, []string{".env.local", ".env.production", ".env"}, dotEnvCandidates("production"))
}
