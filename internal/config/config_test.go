package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/accountd?sslmode=disable")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTokenDuration)
	assert.Equal(t, "secret", cfg.JWT.SecretKey)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Admin.Seed)
	assert.Equal(t, "admin@admin.com", cfg.Admin.Email)
	assert.Equal(t, 30*time.Second, cfg.Admin.SeedTimeout)
	assert.False(t, cfg.Users.RequireAdmin)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_MissingSecretFailsFast(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/accountd")
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret_key")
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "")

	_, err := Load("")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestLoad_FileThenEnv(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 8080
  metrics_port: 9100
log:
  level: debug
users:
  require_admin: true
admin:
  seed: false
cors:
  allowed_origins:
    - http://localhost:5173
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("ACCOUNTD_SERVER__METRICS_PORT", "9200")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 9200, cfg.Server.MetricsPort)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Users.RequireAdmin)
	assert.False(t, cfg.Admin.Seed)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_PrefixedEnvWinsOverAlias(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "4000")
	t.Setenv("ACCOUNTD_SERVER__PORT", "5000")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestLoad_ExpiresIn(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"15m", 15 * time.Minute},
		{"3600", time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			setRequired(t)
			t.Setenv("JWT_EXPIRES_IN", tt.value)

			cfg, err := Load("")

			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.JWT.AccessTokenDuration)
		})
	}
}

func TestLoad_EnvList(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCOUNTD_CORS__ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	setRequired(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.JWT.SecretKey = "s"
	cfg.Database.URL = "postgres://localhost/db"
	require.NoError(t, cfg.Validate())

	cfg.JWT.AccessTokenDuration = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.JWT.SecretKey = "s"
	cfg.Database.URL = "postgres://localhost/db"
	cfg.Admin.Password = ""
	assert.Error(t, cfg.Validate())

	cfg.Admin.Seed = false
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.JWT.SecretKey = "s"
	cfg.Database.URL = "postgres://localhost/db"
	cfg.Admin.SeedTimeout = 0
	assert.ErrorContains(t, cfg.Validate(), "admin.seed_timeout")
}

func TestLoad_SeedTimeoutFromEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCOUNTD_ADMIN__SEED_TIMEOUT", "2m")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Admin.SeedTimeout)
}

func TestPrefixedKey(t *testing.T) {
	assert.Equal(t, "server.metrics_port", prefixedKey("ACCOUNTD_SERVER__METRICS_PORT"))
	assert.Equal(t, "jwt.secret_key", prefixedKey("ACCOUNTD_JWT__SECRET_KEY"))
}
