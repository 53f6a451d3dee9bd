package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "GATEWAY_MERCHANT_KEY", "mk_test")
	setEnv(t, "GATEWAY_MERCHANT_SALT", "salt_test")
	setEnv(t, "PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DefaultGatewayBaseURL, cfg.GatewayBaseURL)
	assert.Equal(t, int64(DefaultCommissionBps), cfg.CommissionRateBps)
	assert.Equal(t, DefaultAutoPayInterval, cfg.AutoPayInterval)
}

func TestLoad_MissingMerchantKey(t *testing.T) {
	setEnv(t, "GATEWAY_MERCHANT_KEY", "")
	setEnv(t, "GATEWAY_MERCHANT_SALT", "salt_test")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_MERCHANT_KEY is required")
}

func TestLoad_MissingMerchantSalt(t *testing.T) {
	setEnv(t, "GATEWAY_MERCHANT_KEY", "mk_test")
	setEnv(t, "GATEWAY_MERCHANT_SALT", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_MERCHANT_SALT is required")
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		return Config{
			GatewayMerchantKey:  "mk",
			GatewayMerchantSalt: "salt",
			CommissionRateBps:   1500,
			AutoPayInterval:     time.Minute,
			DisputeWindowDays:   7,
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := base()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("commission over 100 percent", func(t *testing.T) {
		cfg := base()
		cfg.CommissionRateBps = 10001
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative commission", func(t *testing.T) {
		cfg := base()
		cfg.CommissionRateBps = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("autopay interval too short", func(t *testing.T) {
		cfg := base()
		cfg.AutoPayInterval = 100 * time.Millisecond
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative dispute window", func(t *testing.T) {
		cfg := base()
		cfg.DisputeWindowDays = -1
		assert.Error(t, cfg.Validate())
	})
}

func TestConfig_EnvHelpers(t *testing.T) {
	setEnv(t, "GATEWAY_MERCHANT_KEY", "mk_test")
	setEnv(t, "GATEWAY_MERCHANT_SALT", "salt_test")
	setEnv(t, "ENV", "production")
	setEnv(t, "AUTOPAY_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 30*time.Second, cfg.AutoPayInterval)
}
