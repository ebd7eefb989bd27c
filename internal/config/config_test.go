package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "STORAGE_DRIVER", "SERVER_HOST", "SERVER_PORT", "SERVER_READ_TIMEOUT",
		"WS_ENABLED", "WS_PORT", "DATABASE_URL", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER",
		"DB_PASSWORD", "DB_SSLMODE", "JWT_SECRET", "JWT_TTL", "SYNC_INTERVAL_SECONDS",
		"MATCHING_AVERAGE_SPEED_KMH", "MATCHING_PICKUP_RADIUS_KM", "ADMIN_EMAIL", "ADMIN_PASSWORD",
		"REQUEST_TIMEOUT_SECONDS", "AMQP_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.Equal(t, "0.0.0.0:8081", cfg.RealtimeAddress())
	assert.True(t, cfg.Realtime.Enabled)
	assert.Equal(t, "postgres://foodbridge:@localhost:5432/foodbridge?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 30.0, cfg.Matching.AverageSpeedKmh)
	assert.Zero(t, cfg.Matching.PickupRadiusKm)
	assert.Empty(t, cfg.Events.URL)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("WS_ENABLED", "false")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	t.Setenv("SYNC_INTERVAL_SECONDS", "45")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "1500ms")
	t.Setenv("MATCHING_PICKUP_RADIUS_KM", "12.5")
	t.Setenv("JWT_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "0.0.0.0:9000", cfg.Address())
	assert.False(t, cfg.Realtime.Enabled)
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.Database.URL)
	assert.Equal(t, 45*time.Second, cfg.Buffer.SyncInterval)
	assert.Equal(t, 1500*time.Millisecond, cfg.Context.RequestTimeout)
	assert.Equal(t, 12.5, cfg.Matching.PickupRadiusKm)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL, "unparseable values fall back")
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown storage", map[string]string{"STORAGE_DRIVER": "sqlite"}, "STORAGE_DRIVER"},
		{"production without secret", map[string]string{"APP_ENV": "production"}, "JWT_SECRET"},
		{"admin without password", map[string]string{"ADMIN_EMAIL": "root@example.com"}, "ADMIN_PASSWORD"},
		{"non-positive speed", map[string]string{"MATCHING_AVERAGE_SPEED_KMH": "0"}, "MATCHING_AVERAGE_SPEED_KMH"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
