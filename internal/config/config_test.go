package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MIRADOR_YIELD_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":50051", cfg.Server.Address)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)
	assert.Equal(t, 3.0, cfg.Analysis.ControlLimitSigma)
	assert.Equal(t, 5, cfg.Analysis.WindowSize)
	assert.Equal(t, 2.0, cfg.Analysis.StdDevThreshold)
	assert.Equal(t, 5, cfg.Analysis.MaxWhyDepth)
	assert.Equal(t, "stdio", cfg.MCP.Transport)
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":6000"
  gracefulTimeout: 3s
logging:
  level: debug
  json: true
analysis:
  windowSize: 8
knowledge:
  path: /etc/mirador/kb.yaml
  watch: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.Server.Address)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, 3*time.Second, cfg.Server.GracefulTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, 8, cfg.Analysis.WindowSize)
	assert.Equal(t, 2.0, cfg.Analysis.StdDevThreshold)
	assert.Equal(t, "/etc/mirador/kb.yaml", cfg.Knowledge.Path)
	assert.True(t, cfg.Knowledge.Watch)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MIRADOR_YIELD_CONFIG", "")
	t.Setenv("MIRADOR_YIELD_SERVER_ADDRESS", ":7000")
	t.Setenv("MIRADOR_YIELD_SESSION_BACKEND", "VALKEY")
	t.Setenv("MIRADOR_YIELD_CACHE_ADDR", "valkey:6379")
	t.Setenv("MIRADOR_YIELD_SESSION_TTL", "45m")
	t.Setenv("MIRADOR_YIELD_CACHE_TLS", "1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.Equal(t, SessionBackendValkey, cfg.Session.Backend)
	assert.Equal(t, "valkey:6379", cfg.Cache.Addr)
	assert.Equal(t, 45*time.Minute, cfg.Session.TTL)
	assert.True(t, cfg.Cache.TLS)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.Backend = SessionBackendValkey
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Session.Backend = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Analysis.WindowSize = 1
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.MCP.Transport = "sse"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	assert.NoError(t, cfg.Validate())
}
