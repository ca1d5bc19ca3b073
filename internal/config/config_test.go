package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DB_NAME", "clinic_test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "clinic_test", cfg.Database.Name)
	assert.Contains(t, cfg.Database.DSN, "@tcp(localhost:3306)/clinic_test?")
	assert.Equal(t, 15, cfg.JWTExpirationMinutes)
	assert.Equal(t, 168, cfg.JWTRefreshExpirationHours)
	assert.Equal(t, 5*time.Second, cfg.Redis.SlotLockTTL)
	assert.Equal(t, int64(10<<20), cfg.Uploads.MaxBytes)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SLOT_LOCK_TTL", "1500ms")
	t.Setenv("MAX_UPLOAD_MB", "2")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.Redis.SlotLockTTL)
	assert.Equal(t, int64(2<<20), cfg.Uploads.MaxBytes)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Run("jwt expiration", func(t *testing.T) {
		t.Setenv("JWT_EXPIRATION_MINUTES", "soon")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("lock ttl", func(t *testing.T) {
		t.Setenv("SLOT_LOCK_TTL", "forever")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("upload size", func(t *testing.T) {
		t.Setenv("MAX_UPLOAD_MB", "0")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}
