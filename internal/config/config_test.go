package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loopmix/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		t.Setenv("LOOPMIX_DATABASE_URL", "postgres://localhost/loopmix")
		t.Setenv("LOOPMIX_REDIS_ADDR", "")
		t.Setenv("LOOPMIX_PRESET_NAME", "")
		t.Setenv("LOOPMIX_DOWNLOAD_TIMEOUT", "")
		t.Setenv("LOOPMIX_DOWNLOAD_RETRIES", "")

		cfg, err := config.Load()
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost:6379", cfg.RedisAddr)
		assert.Equal(t, "loopmix:jobs", cfg.QueueName)
		assert.Equal(t, "ffmpeg", cfg.FFmpegBin)
		assert.Equal(t, "ffprobe", cfg.FFprobeBin)
		assert.Equal(t, "balanced-720", cfg.PresetName)
		assert.Equal(t, 2*time.Minute, cfg.DownloadTimeout)
		assert.Equal(t, 3, cfg.DownloadRetries)
		assert.Equal(t, "localfs", cfg.StorageProvider)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		t.Setenv("LOOPMIX_DATABASE_URL", "postgres://db:5432/jobs")
		t.Setenv("LOOPMIX_REDIS_ADDR", "redis:6379")
		t.Setenv("LOOPMIX_PRESET_NAME", "quality-1080")
		t.Setenv("LOOPMIX_DOWNLOAD_TIMEOUT", "45s")
		t.Setenv("LOOPMIX_DOWNLOAD_RETRIES", "5")
		t.Setenv("LOOPMIX_SCRATCH_DIR", "/scratch")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "postgres://db:5432/jobs", cfg.DatabaseURL)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, "quality-1080", cfg.PresetName)
		assert.Equal(t, 45*time.Second, cfg.DownloadTimeout)
		assert.Equal(t, 5, cfg.DownloadRetries)
		assert.Equal(t, "/scratch", cfg.ScratchDir)
	})

	t.Run("fails when the database URL is missing", func(t *testing.T) {
		t.Setenv("LOOPMIX_DATABASE_URL", "")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LOOPMIX_DATABASE_URL")
	})

	t.Run("rejects unknown storage providers", func(t *testing.T) {
		t.Setenv("LOOPMIX_DATABASE_URL", "postgres://localhost/loopmix")
		t.Setenv("LOOPMIX_STORAGE_PROVIDER", "s3")

		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown storage provider")
	})
}
