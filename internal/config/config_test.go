package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.Polymarket.MarketCacheTTL.Duration)
	assert.Equal(t, "last_check_wins", cfg.Evaluation.Precedence)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Evaluation.Precedence = "coinflip"
	cfg.Polymarket.Mirrors = []string{"https://proxy.example.com/"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "trade"`)
	assert.Contains(t, err.Error(), `unknown precedence "coinflip"`)
	assert.Contains(t, err.Error(), "must contain {url} or {raw}")
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "polyedge.toml")
	body := `
mode = "server"

[polymarket]
mirrors = ["https://a.example/?url={url}"]
request_timeout = "3s"

[evaluation]
precedence = "failure_first"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("POLYEDGE_SERVER_PORT", "9100")
	t.Setenv("POLYEDGE_POLYMARKET_MIRRORS", "https://b.example/{raw}, https://c.example/?u={url}")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, 3*time.Second, cfg.Polymarket.RequestTimeout.Duration)
	assert.Equal(t, "failure_first", cfg.Evaluation.Precedence)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"https://b.example/{raw}", "https://c.example/?u={url}"}, cfg.Polymarket.Mirrors)
	require.NoError(t, cfg.Validate())
}

func TestPostgresDSN(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pw"
	assert.Equal(t, "postgres://postgres:pw@localhost:5432/polyedge?sslmode=disable", cfg.PostgresDSN())

	cfg.Postgres.DSN = " postgres://x "
	assert.Equal(t, "postgres://x", cfg.PostgresDSN())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Server.APIKey = "secret"
	cfg.Postgres.Password = "pw"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Empty(t, out.Redis.Password)

	out.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
	assert.Equal(t, "secret", cfg.Server.APIKey)
}

func TestMemoryStoreSkipsBackendChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Store = "memory"
	cfg.Postgres.Host = ""
	cfg.Redis.Addr = ""
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.UsesPostgres())

	cfg.Store = "sqlite"
	assert.ErrorContains(t, cfg.Validate(), `unknown store "sqlite"`)
}
