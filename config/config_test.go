package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cashback-engine/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(nil)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, config.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "cashback.db", cfg.DBPath)
	assert.True(t, cfg.SeedDefault)
	assert.Equal(t, 0, cfg.Workers)
}

func TestLoad_Precedence(t *testing.T) {
	// GIVEN: A YAML file setting port, driver and workers
	// WHEN: A flag overrides port and an env var overrides workers
	// THEN: env beats flag beats file beats default

	path := writeConfig(t, `
port: 9000
db_driver: memory
workers: 2
log_format: json
`)
	t.Setenv("CASHBACK_WORKERS", "6")

	cfg, err := config.Load([]string{"-config", path, "-port", "9100", "-workers", "4"})

	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port, "flag over file")
	assert.Equal(t, config.DriverMemory, cfg.DBDriver, "file over default")
	assert.Equal(t, 6, cfg.Workers, "env over flag")
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_ConfigFileFromEnv(t *testing.T) {
	path := writeConfig(t, "port: 7000\n")
	t.Setenv("CASHBACK_CONFIG", path)

	cfg, err := config.Load(nil)

	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := config.Load([]string{"-db-driver", "oracle"})
	assert.ErrorContains(t, err, "unknown db driver")

	_, err = config.Load([]string{"-db-driver", "postgres"})
	assert.ErrorContains(t, err, "database url")

	t.Setenv("CASHBACK_PORT", "eighty")
	_, err = config.Load(nil)
	assert.ErrorContains(t, err, "CASHBACK_PORT")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load([]string{"-config", filepath.Join(t.TempDir(), "nope.yaml")})

	assert.ErrorContains(t, err, "reading config")
}

func TestLogger_RespectsLevelAndFormat(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "warn"
	cfg.LogFormat = "json"
	var buf bytes.Buffer

	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "json handler")
	assert.Contains(t, out, `"k":"v"`)
}
