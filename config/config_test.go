package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func write(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "vme.yaml")
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
	return name
}

func TestLoad(t *testing.T) {
	t.Setenv("VME_CALC_TOKEN", "s3cret")
	name := write(t, `
log_level: debug
market:
  base_url: https://market.example.com
  cache: false
  timeout: 3s
  sector: Technology
history:
  limit: 100
ai:
  model: gemini-2.5-pro
http:
  port: 9090
calc:
  base_url: http://localhost:8000
  token: ${VME_CALC_TOKEN}
`)
	cfg := NewDefaultConfig()
	require.NoError(t, Load(name, cfg))

	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.Equal(t, "https://market.example.com", cfg.Market.BaseURL)
	require.False(t, cfg.Market.Cache)
	require.False(t, cfg.Market.Offline())
	require.Equal(t, 3*time.Second, cfg.Market.Timeout)
	require.Equal(t, time.Hour, cfg.Market.CachePeriod, "defaults survive a partial file")
	require.Equal(t, "Technology", cfg.Market.Sector)
	require.Equal(t, 100, cfg.History.Limit)
	require.Equal(t, "gemini-2.5-pro", cfg.AI.Model)
	require.Equal(t, ":9090", cfg.HTTP.Address())
	require.Equal(t, "s3cret", cfg.Calc.Token)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"), cfg))
	require.Equal(t, NewDefaultConfig(), cfg)
	require.True(t, cfg.Market.Offline())

	require.Error(t, Load(filepath.Join(t.TempDir(), "missing.yaml"), cfg))
}

func TestLoadInvalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"port", "http:\n  port: 70000\n"},
		{"market url", "market:\n  base_url: market.example.com\n"},
		{"calc url", "calc:\n  base_url: ftp://calc\n"},
		{"history", "history:\n  limit: -1\n"},
		{"confidence", "ai:\n  min_confidence: 2\n"},
		{"model", "ai:\n  model: \"\"\n"},
		{"yaml", "market: [\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			require.Error(t, Load(write(t, tc.content), cfg))
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())
}
