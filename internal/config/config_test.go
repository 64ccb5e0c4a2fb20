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
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestInit_Defaults(t *testing.T) {
	dir := writeConfig(t, "app:\n  name: test\n")
	require.NoError(t, Init(dir))

	cfg := GetConfig()
	assert.Equal(t, "test", cfg.App.Name)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 10*time.Second, cfg.App.RequestTimeout)
	assert.Equal(t, 5000, cfg.Comment.Limits["comment"])
	assert.Equal(t, 10000, cfg.Comment.Limits["article"])
	assert.Equal(t, 10*time.Second, cfg.Comment.Cooldown)
	assert.Equal(t, uint(5), cfg.Comment.EditRetries)
	assert.Equal(t, "blackfriday", cfg.Markdown.Engine)
	assert.Equal(t, "0 */10 * * * *", cfg.Cron.RecountSpec)
}

func TestInit_OverridesAndEnv(t *testing.T) {
	dir := writeConfig(t, `
comment:
  limits:
    comment: 16
  cooldown: 2s
database:
  driver: postgres
  host: db
  port: 5432
  username: u
  password: p
  database: blog
`)
	t.Setenv("APP_PORT", "9090")
	require.NoError(t, Init(dir))

	cfg := GetConfig()
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, 16, cfg.Comment.Limits["comment"])
	assert.Equal(t, 2*time.Second, cfg.Comment.Cooldown)
	assert.Contains(t, cfg.Database.DSN(), "host=db")
	assert.Contains(t, cfg.Database.DSN(), "sslmode=disable")
}

func TestInit_MissingFile(t *testing.T) {
	assert.Error(t, Init(t.TempDir()))
}
