package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cubelab/maple-proxy/pkg/schema"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, "https://open.api.nexon.com", cfg.UpstreamBaseURL)
	require.Equal(t, "Asia/Seoul", cfg.Timezone)
	require.Equal(t, 500, cfg.RateCapacity)
	require.Equal(t, time.Minute, cfg.RatePeriod)
	require.Equal(t, time.Hour, cfg.Freshness)
	require.Equal(t, "sqlite", cfg.DB.Type)
	require.Nil(t, cfg.KindFreshness)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("NEXON_API_KEY", "live_key")
	t.Setenv("RATE_LIMIT_CAPACITY", "100")
	t.Setenv("RATE_LIMIT_PERIOD", "30s")
	t.Setenv("FRESHNESS_WINDOW", "15m")
	t.Setenv("FRESHNESS_BASIC", "5m")
	t.Setenv("FRESHNESS_ITEM_EQUIPMENT", "2h")

	cfg := Load()

	require.Equal(t, ":9090", cfg.ListenAddr)
	require.Equal(t, "live_key", cfg.UpstreamAPIKey)
	require.Equal(t, 100, cfg.RateCapacity)
	require.Equal(t, 30*time.Second, cfg.RatePeriod)
	require.Equal(t, 15*time.Minute, cfg.Freshness)
	require.Equal(t, 5*time.Minute, cfg.KindFreshness[schema.KindBasic])
	require.Equal(t, 2*time.Hour, cfg.KindFreshness[schema.KindItemEquipment])
}

func TestValidate(t *testing.T) {
	t.Setenv("NEXON_API_KEY", "live_key")
	cfg := Load()
	require.NoError(t, cfg.Validate())

	missingKey := cfg
	missingKey.UpstreamAPIKey = ""
	require.Error(t, missingKey.Validate())

	badTZ := cfg
	badTZ.Timezone = "Mars/Olympus"
	require.Error(t, badTZ.Validate())

	badCapacity := cfg
	badCapacity.RateCapacity = 0
	require.Error(t, badCapacity.Validate())
}

func TestGetenvParsersFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "not-a-number")
	t.Setenv("RATE_LIMIT_PERIOD", "not-a-duration")

	cfg := Load()
	require.Equal(t, 500, cfg.RateCapacity)
	require.Equal(t, time.Minute, cfg.RatePeriod)
}
