package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "quickdesk-api", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, int64(10*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	assert.Equal(t, 5, cfg.Uploads.MaxFilesPerTicket)
	assert.Equal(t, 3, cfg.Uploads.MaxFilesPerReply)
	assert.Equal(t, 30*time.Second, cfg.Redis.StatsCacheTTL())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("UPLOAD_MAX_FILES_PER_TICKET", "2")
	t.Setenv("REDIS_STATS_CACHE_TTL_SECONDS", "0")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 2, cfg.Uploads.MaxFilesPerTicket)
	assert.Equal(t, time.Duration(0), cfg.Redis.StatsCacheTTL())
	assert.False(t, cfg.Postgres.RunMigrations)
	assert.Equal(t, 30, cfg.App.RequestTimeoutSeconds, "garbage values fall back to the default")
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}
