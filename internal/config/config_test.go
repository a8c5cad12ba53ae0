package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lending")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, DueDatePolicyFirstOfMonth, cfg.DueDatePolicy)
	assert.Equal(t, 10*time.Minute, cfg.QuoteCacheTTL)
	assert.Equal(t, "@daily", cfg.OverdueCron)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "dev-secret-change-in-production", cfg.JWTSecret)
	assert.False(t, cfg.AutoMigrate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/lending")
	t.Setenv("DUE_DATE_POLICY", DueDatePolicySameDay)
	t.Setenv("QUOTE_CACHE_TTL", "90s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("AUTO_MIGRATE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DueDatePolicySameDay, cfg.DueDatePolicy)
	assert.Equal(t, 90*time.Second, cfg.QuoteCacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}},
		{"unknown due date policy", map[string]string{"DATABASE_URL": "postgres://x", "DUE_DATE_POLICY": "last_day"}},
		{"production without secret", map[string]string{"DATABASE_URL": "postgres://x", "ENVIRONMENT": "production", "JWT_SECRET": ""}},
		{"no workers", map[string]string{"DATABASE_URL": "postgres://x", "WORKER_COUNT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
