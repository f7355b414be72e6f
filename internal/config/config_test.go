package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, 15, cfg.AccessTokenTTLMinutes)
	assert.Equal(t, 7, cfg.RefreshTokenTTLDays)
	assert.Equal(t, "messenger.events", cfg.AMQPExchange)
	assert.Equal(t, "dev", cfg.Env)
	assert.NotEmpty(t, cfg.DatabaseDSN)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "30")
	t.Setenv("REFRESH_TOKEN_TTL_DAYS", "14")
	t.Setenv("APP_ENV", "production")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 30, cfg.AccessTokenTTLMinutes)
	assert.Equal(t, 14, cfg.RefreshTokenTTLDays)
	assert.Equal(t, "production", cfg.Env)
}

func TestLoadIgnoresUnparsableInt(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "not-a-number")

	cfg := Load()
	assert.Equal(t, 15, cfg.AccessTokenTTLMinutes)
}
