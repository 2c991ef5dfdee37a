package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/joho/godotenv"
)

type Config struct {
	Issuer     string // issuer claim for credentials (default: lockbox-auth)
	TOTPIssuer string // issuer shown in authenticator apps (default: Lockbox)

	SigningKeyFile string // Optional: Ed25519 PEM key shared by every instance; generated when missing
	MasterKeyPath  string // Optional: file holding the master secret that seals TOTP secrets
	DatabaseFile   string // SQLite database file (default: auth.db)
	PepperFile     string // file containing the password pepper (default: pepper)

	IntermediateTTL   time.Duration // lifetime of the 2FA-pending credential (default: 5m, capped at 5m)
	AccessTTL         time.Duration // lifetime of the final credential (default: 168h)
	FaceRequestTTL    time.Duration // default Face ID request lifetime (default: 5m)
	FaceRequestMaxTTL time.Duration // upper clamp for a caller-supplied lifetime (default: 15m)

	RedisURL       string   // Optional: shared revocation registry and realtime fan-out
	KafkaBrokers   []string // Optional: push dispatch through kafka; logged only when empty
	KafkaPushTopic string   // default: lockbox.push.face-auth

	FaceServiceURL     string        // face verification service base URL
	FaceServiceTimeout time.Duration // per-call timeout (default: 10s)

	WSAllowedOrigins  []string // browser origins allowed to open /realtime; "*" allows any
	TrustProxyHeaders bool     // rate limit by X-Forwarded-For / X-Real-IP (default: true)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 2m)
}

// LoadConfig reads the environment, after loading a .env file from the
// working directory when one exists. Rate limit profiles are loaded into
// pkg/httpx at the same time.
func LoadConfig() Config {
	_ = godotenv.Load()
	httpx.LoadRateLimitsFromEnv()

	return Config{
		Issuer:     getEnvOrDefault("AUTH_ISSUER", "lockbox-auth"),
		TOTPIssuer: getEnvOrDefault("AUTH_TOTP_ISSUER", "Lockbox"),

		SigningKeyFile: os.Getenv("AUTH_SIGNING_KEY_FILE"),
		MasterKeyPath:  os.Getenv("AUTH_MASTER_KEY_PATH"),
		DatabaseFile:   getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:     getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		IntermediateTTL:   getEnvDurationOrDefault("AUTH_INTERMEDIATE_TTL", 5*time.Minute),
		AccessTTL:         getEnvDurationOrDefault("AUTH_ACCESS_TTL", 7*24*time.Hour),
		FaceRequestTTL:    getEnvDurationOrDefault("AUTH_FACE_REQUEST_TTL", 5*time.Minute),
		FaceRequestMaxTTL: getEnvDurationOrDefault("AUTH_FACE_REQUEST_MAX_TTL", 15*time.Minute),

		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaBrokers:   getEnvListOrDefault("KAFKA_BROKERS", nil),
		KafkaPushTopic: getEnvOrDefault("KAFKA_PUSH_TOPIC", "lockbox.push.face-auth"),

		FaceServiceURL:     getEnvOrDefault("FACE_SERVICE_URL", "http://localhost:5000"),
		FaceServiceTimeout: getEnvDurationOrDefault("FACE_SERVICE_TIMEOUT", 10*time.Second),

		WSAllowedOrigins:  getEnvListOrDefault("WS_ALLOWED_ORIGINS", nil),
		TrustProxyHeaders: getEnvBoolOrDefault("TRUST_PROXY_HEADERS", true),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 2*time.Minute),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma separated value, dropping empty items.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
