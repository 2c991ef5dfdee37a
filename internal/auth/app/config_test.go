package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"AUTH_ISSUER", "AUTH_INTERMEDIATE_TTL", "AUTH_ACCESS_TTL",
		"AUTH_FACE_REQUEST_MAX_TTL", "HOUSEKEEPING_INTERVAL", "KAFKA_BROKERS", "REDIS_URL", "TRUST_PROXY_HEADERS"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	require.Equal(t, "lockbox-auth", cfg.Issuer)
	require.Equal(t, 5*time.Minute, cfg.IntermediateTTL)
	require.Equal(t, 7*24*time.Hour, cfg.AccessTTL)
	require.Equal(t, 15*time.Minute, cfg.FaceRequestMaxTTL)
	require.Equal(t, 2*time.Minute, cfg.HousekeepingInterval)
	require.Empty(t, cfg.KafkaBrokers)
	require.Empty(t, cfg.RedisURL)
	require.True(t, cfg.TrustProxyHeaders)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("AUTH_ISSUER", "lockbox-staging")
	t.Setenv("AUTH_FACE_REQUEST_TTL", "10")
	t.Setenv("FACE_SERVICE_TIMEOUT", "3s")
	t.Setenv("PORT", "not-a-number")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://app.lockbox.example")
	t.Setenv("TRUST_PROXY_HEADERS", "false")

	cfg := LoadConfig()

	require.Equal(t, "lockbox-staging", cfg.Issuer)
	require.Equal(t, 10*time.Minute, cfg.FaceRequestTTL, "bare integers are minutes")
	require.Equal(t, 3*time.Second, cfg.FaceServiceTimeout)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []string{"https://app.lockbox.example"}, cfg.WSAllowedOrigins)
	require.False(t, cfg.TrustProxyHeaders)
}
