package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fan")
	t.Setenv("GAME_SERVICE_TOKEN", "gw-token")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5200", cfg.HTTPAddr)
	assert.Equal(t, 20, cfg.Feed.DefaultPageSize)
	assert.Equal(t, 100, cfg.Feed.MaxPageSize)
	assert.Equal(t, "latest_first", cfg.Ranking.PredictionTieBreak)
	assert.Equal(t, "activity:events", cfg.Redis.EventStream)
	assert.Equal(t, time.Minute, cfg.Scheduler.AutoFinishInterval)
	assert.Len(t, cfg.AllowedOrigins, 2)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GAME_SERVICE_TOKEN", "gw-token")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadClampsDefaultPageSize(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fan")
	t.Setenv("GAME_SERVICE_TOKEN", "gw-token")
	t.Setenv("FEED_DEFAULT_PAGE_SIZE", "500")
	t.Setenv("FEED_MAX_PAGE_SIZE", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Feed.DefaultPageSize)
}
