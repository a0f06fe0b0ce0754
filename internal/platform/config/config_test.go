package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 8*time.Second, cfg.Flow.RedirectDelay)
	assert.Equal(t, "111111", cfg.Flow.DefaultOTP)
	assert.True(t, cfg.Gateways.Mock)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
flow:
  redirect_delay: 3s
gateways:
  mock: false
  otp_url: http://otp.internal
  oneclick_url: http://oneclick.internal
`), 0o600))

	t.Setenv("ONBOARDING_FLOW__REDIRECT_DELAY", "5s")
	t.Setenv("ONBOARDING_AUDIT__KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Flow.RedirectDelay)
	assert.False(t, cfg.Gateways.Mock)
	assert.Equal(t, "http://otp.internal", cfg.Gateways.OtpURL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Audit.KafkaBrokers)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ONBOARDING_LOG__LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ONBOARDING_LOG__LEVEL") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestMissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Gateways.Mock = false
	cfg.Session.TTL = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.ttl")
	assert.Contains(t, err.Error(), "gateways.otp_url")
}
