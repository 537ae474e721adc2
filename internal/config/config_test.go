package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 8501, cfg.Server.Port)
	assert.Equal(t, "Trade Log", cfg.Server.Title)
	assert.Equal(t, BackendSheets, cfg.Store.Backend)
	assert.Equal(t, "trade_log", cfg.Store.Table)
	assert.Equal(t, 15*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 3, cfg.Store.MaxConflictRetries)
	assert.Equal(t, "0.001425", cfg.Fees.FeeRate)
	assert.Equal(t, "0.6", cfg.Fees.Discount)
	assert.Equal(t, int64(20), cfg.Fees.MinimumFee)
	assert.Equal(t, int64(1000), cfg.Fees.BoardLot)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yml := `
server:
  port: 9000
store:
  backend: sqlite
  timeout: 5s
database:
  dsn: "file::memory:"
fees:
  discount: "0.28"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o600))

	cfg, err := LoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.Equal(t, "0.28", cfg.Fees.Discount)
	assert.Equal(t, "0.003", cfg.Fees.TaxRate)
}

func TestLoadConfig_Env(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SHEETS_API_KEY=from-dotenv\n"), 0o600))
	t.Setenv("SHEETS_BASE_URL", "https://sheets.example.com/")
	t.Setenv("STORE_TABLE", "journal")
	t.Cleanup(func() { os.Unsetenv("SHEETS_API_KEY") })

	cfg, err := LoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, "https://sheets.example.com/", cfg.Sheets.BaseURL)
	assert.Equal(t, "from-dotenv", cfg.Sheets.ApiKey)
	assert.Equal(t, "journal", cfg.Store.Table)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("server: [unclosed"), 0o600))

	_, err := LoadConfig(dir)

	assert.Error(t, err)
}
