package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staff-pay-engine/config"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"APP_PORT", "DB_DRIVER", "DB_PATH", "DATABASE_URL", "LOG_LEVEL", "SETTINGS_FILE", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RECONCILE_INTERVAL"} {
		t.Setenv(k, "")
	}

	c, err := config.FromEnv()

	require.NoError(t, err)
	assert.Equal(t, 8080, c.App.Port)
	assert.Equal(t, "sqlite", c.Database.Driver)
	assert.Equal(t, "./staffpay.db", c.Database.Path)
	assert.Equal(t, 24*time.Hour, c.ReconcileInterval)
	assert.Equal(t, 40, c.RateLimit.Burst)
	assert.Equal(t, slog.LevelInfo, c.SlogLevel())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/pay")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_RPS", "0")
	t.Setenv("RECONCILE_INTERVAL", "1h")

	c, err := config.FromEnv()

	require.NoError(t, err)
	assert.Equal(t, 9090, c.App.Port)
	assert.Equal(t, "postgres", c.Database.Driver)
	assert.Equal(t, time.Hour, c.ReconcileInterval)
	assert.Equal(t, slog.LevelDebug, c.SlogLevel())
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"port":              {"APP_PORT", "http"},
		"driver":            {"DB_DRIVER", "mysql"},
		"postgres url":      {"DB_DRIVER", "postgres"},
		"interval":          {"RECONCILE_INTERVAL", "daily"},
		"rps":               {"RATE_LIMIT_RPS", "fast"},
		"negative interval": {"RECONCILE_INTERVAL", "-1h"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv(kv[0], kv[1])
			_, err := config.FromEnv()
			assert.Error(t, err)
		})
	}
}
