package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/tablebank/internal/model"
)

// chdir moves into a fresh directory so no stray tablebank.toml or .env is picked up
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Load(New(), "", "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, StorageTypeMemory, cfg.Storage.Type)
	assert.Equal(t, 24*time.Hour, cfg.Storage.Redis.TTL)
	assert.Equal(t, 5, cfg.Lobby.CodeLength)
	assert.Equal(t, int64(1500), cfg.Lobby.StartingBalance)
	assert.Equal(t, []int64{10, 50, 100}, cfg.Lobby.QuickAmounts)
	assert.Equal(t, "inverse", cfg.Ledger.UndoMode)
	assert.Equal(t, model.DefaultSettings(), cfg.Settings())
}

func TestLoadConfigFile(t *testing.T) {
	dir := chdir(t)
	writeFile(t, filepath.Join(dir, "tablebank.toml"), `
[server]
port = 9090
shutdown_timeout = "5s"

[storage]
type = "redis"

[storage.redis]
url = "redis://cache:6379/1"
ttl = "2h"

[lobby]
starting_balance = 2000
quick_amounts = [5, 20, 200]

[ledger]
undo_mode = "replay"
`)

	cfg, err := Load(New(), "", "")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, StorageTypeRedis, cfg.Storage.Type)
	assert.Equal(t, "redis://cache:6379/1", cfg.Storage.Redis.URL)
	assert.Equal(t, 2*time.Hour, cfg.Storage.Redis.TTL)
	assert.Equal(t, "replay", cfg.Ledger.UndoMode)

	settings := cfg.Settings()
	assert.Equal(t, int64(2000), settings.StartingBalance)
	assert.Equal(t, [model.QuickAmountCount]int64{5, 20, 200}, settings.QuickAmounts)
}

func TestLoadExplicitConfigFileMissing(t *testing.T) {
	dir := chdir(t)

	_, err := Load(New(), filepath.Join(dir, "missing.toml"), "")
	assert.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := chdir(t)
	writeFile(t, filepath.Join(dir, "tablebank.toml"), "[server]\nport = 9090\n")
	t.Setenv("TABLEBANK_SERVER_PORT", "7070")
	t.Setenv("TABLEBANK_LOG_LEVEL", "debug")

	cfg, err := Load(New(), "", "")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestDotEnvFile(t *testing.T) {
	dir := chdir(t)
	writeFile(t, filepath.Join(dir, ".env"), "TABLEBANK_LOBBY_STARTING_BALANCE=3000\n")
	// godotenv writes to the process environment; restore it afterwards
	t.Setenv("TABLEBANK_LOBBY_STARTING_BALANCE", "")
	require.NoError(t, os.Unsetenv("TABLEBANK_LOBBY_STARTING_BALANCE"))

	cfg, err := Load(New(), "", "")
	require.NoError(t, err)

	assert.Equal(t, int64(3000), cfg.Lobby.StartingBalance)
}

func TestExplicitEnvFileMissing(t *testing.T) {
	dir := chdir(t)

	_, err := Load(New(), "", filepath.Join(dir, "prod.env"))
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	chdir(t)
	cfg, err := Load(New(), "", "")
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "postgres" }},
		{"redis without url", func(c *Config) { c.Storage.Type = StorageTypeRedis; c.Storage.Redis.URL = "" }},
		{"redis without ttl", func(c *Config) { c.Storage.Type = StorageTypeRedis; c.Storage.Redis.TTL = 0 }},
		{"short code", func(c *Config) { c.Lobby.CodeLength = 2 }},
		{"negative balance", func(c *Config) { c.Lobby.StartingBalance = -1 }},
		{"two quick amounts", func(c *Config) { c.Lobby.QuickAmounts = []int64{10, 50} }},
		{"zero quick amount", func(c *Config) { c.Lobby.QuickAmounts = []int64{10, 0, 100} }},
		{"unknown undo mode", func(c *Config) { c.Ledger.UndoMode = "rewind" }},
		{"token cost too low", func(c *Config) { c.Identity.TokenCost = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, "WARN", level.String())

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
