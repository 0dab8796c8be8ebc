package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://localhost/test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "test", cfg.GoEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.MediaURLTTL)
	assert.Equal(t, 30*time.Second, cfg.OrderLockTTL)
	assert.Equal(t, "order-events", cfg.KafkaOrderTopic)
	assert.Equal(t, "LD", cfg.OrderNumberPrefix)
	assert.Equal(t, 11, cfg.PhoneLength)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.KafkaEnabled())
	assert.True(t, cfg.IsTest())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://localhost/test")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ORDER_LOCK_TTL", "5s")
	t.Setenv("PHONE_LENGTH", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 5*time.Second, cfg.OrderLockTTL)
	assert.Equal(t, 8, cfg.PhoneLength)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.EqualError(t, err, "DATABASE_URL is required")
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://localhost/test")
	t.Setenv("ORDER_LOCK_TTL", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestEnvironmentHelpers(t *testing.T) {
	tests := []struct {
		env         string
		production  bool
		test        bool
		development bool
	}{
		{"production", true, false, false},
		{"test", false, true, false},
		{"development", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{GoEnv: tt.env}
			assert.Equal(t, tt.production, cfg.IsProduction())
			assert.Equal(t, tt.test, cfg.IsTest())
			assert.Equal(t, tt.development, cfg.IsDevelopment())
		})
	}
}

func TestGetSetConfig(t *testing.T) {
	original := GetConfig()
	defer SetConfig(original)

	cfg := &Config{DatabaseURL: "x", PhoneLength: 11, OrderNumberPrefix: "LD"}
	SetConfig(cfg)
	assert.Same(t, cfg, GetConfig())
	assert.NoError(t, cfg.Validate())
}
