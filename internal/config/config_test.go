package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"story-engine/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecret(t *testing.T, dir, name, value string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(value), 0o600))
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults with postgres", func(t *testing.T) {
		dir := t.TempDir()
		writeSecret(t, dir, "jwt_secret", "s3cret\n")
		writeSecret(t, dir, "db_password", "pw")
		t.Setenv("SECRETS_DIR", dir)
		t.Setenv("DB_HOST", "db")

		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "8082", cfg.Port)
		assert.Equal(t, config.StorePostgres, cfg.SessionStore)
		assert.Equal(t, "s3cret", cfg.JWTSecret)
		assert.Equal(t, "pw", cfg.DBPassword)
		assert.Equal(t, 5*time.Minute, cfg.StoryCacheTTL)
		assert.True(t, cfg.AcceptClientState)
		assert.False(t, cfg.LogSampling)
		assert.Equal(t, "postgres://postgres:pw@db:5432/story_engine?sslmode=disable", cfg.GetDSN())
	})

	t.Run("sqlite and yaml need no db password", func(t *testing.T) {
		dir := t.TempDir()
		writeSecret(t, dir, "jwt_secret", "s3cret")
		t.Setenv("SECRETS_DIR", dir)
		t.Setenv("SESSION_STORE", "SQLite")
		t.Setenv("STORY_SOURCE", "yaml")
		t.Setenv("GAMEPLAY_ACCEPT_CLIENT_STATE", "false")

		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, config.StoreSQLite, cfg.SessionStore)
		assert.False(t, cfg.UsesPostgres())
		assert.Empty(t, cfg.DBPassword)
		assert.False(t, cfg.AcceptClientState)
	})

	t.Run("unknown store", func(t *testing.T) {
		t.Setenv("SECRETS_DIR", t.TempDir())
		t.Setenv("SESSION_STORE", "mongo")
		_, err := config.LoadConfig()
		assert.ErrorContains(t, err, "SESSION_STORE")
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv("SECRETS_DIR", t.TempDir())
		t.Setenv("SESSION_STORE", "sqlite")
		t.Setenv("STORY_SOURCE", "yaml")
		_, err := config.LoadConfig()
		assert.ErrorContains(t, err, "jwt_secret")
	})
}

func TestReadSecret(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "blank", "  \n")

	_, err := config.ReadSecret(dir, "blank")
	assert.ErrorContains(t, err, "is empty")

	_, err = config.ReadSecret(dir, "absent")
	assert.Error(t, err)
}
