package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, "5432", cfg.DB.Port)
	assert.Equal(t, "glucose_monitor", cfg.DB.DBName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.False(t, cfg.Redis.Enabled())

	assert.Equal(t, 15*time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, 6, cfg.Monitor.WindowHours)
	assert.Equal(t, 4, cfg.Monitor.Workers)
	assert.Equal(t, 5*time.Second, cfg.Monitor.StopTimeout)
	assert.Equal(t, time.Hour, cfg.Monitor.AlertCooldown)

	assert.Equal(t, []string{"gemini", "openai"}, cfg.LLM.Providers)
	assert.Equal(t, "deepseek-r1:1.5b", cfg.LLM.Model)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 200, cfg.LLM.AlertMaxTokens)

	assert.Equal(t, logger.LevelInfo, cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("MONITOR_INTERVAL", "90s")
	t.Setenv("MONITOR_WORKERS", "8")
	t.Setenv("LLM_PROVIDERS", "OpenAI")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
	assert.Equal(t, 90*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 8, cfg.Monitor.Workers)
	assert.Equal(t, []string{"openai"}, cfg.LLM.Providers)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.OpenAIBaseURL)
	assert.Equal(t, logger.LevelDebug, cfg.Logger.Level)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
	assert.Same(t, cfg.location, loc)
}

func TestLocation(t *testing.T) {
	t.Run("resolved during validation", func(t *testing.T) {
		t.Setenv("TIMEZONE", "Europe/Berlin")
		cfg, err := Load()
		require.NoError(t, err)
		require.NotNil(t, cfg.location)
		assert.Equal(t, "Europe/Berlin", cfg.location.String())
	})

	t.Run("unvalidated config reports bad zone", func(t *testing.T) {
		cfg := &Config{Timezone: "Mars/Olympus"}
		_, err := cfg.Location()
		assert.Error(t, err)
	})

	t.Run("unvalidated config resolves on demand", func(t *testing.T) {
		cfg := &Config{Timezone: "UTC"}
		loc, err := cfg.Location()
		require.NoError(t, err)
		assert.Equal(t, time.UTC, loc)
	})
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", "MONITOR_INTERVAL", "soon"},
		{"bad integer", "MONITOR_WORKERS", "many"},
		{"zero workers", "MONITOR_WORKERS", "0"},
		{"temperature out of range", "LLM_TEMPERATURE", "3.5"},
		{"unknown provider", "LLM_PROVIDERS", "gemini,claude"},
		{"unknown timezone", "TIMEZONE", "Mars/Olympus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDBConfig_DSN(t *testing.T) {
	d := DBConfig{Host: "h", Port: "1", User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=n sslmode=disable", d.DSN())
}
