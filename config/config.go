package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const firebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

type Config struct {
	HTTP     HTTPConfig
	MySQLDSN string
	JWT      JWTConfig
	Reset    ResetConfig
	Sweep    SweepConfig
	Mail     MailConfig
	Firebase FirebaseConfig
	Kafka    KafkaConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Host string
	Port string
	// PublicPathPrefixes bypass the session authenticator entirely.
	PublicPathPrefixes []string
}

type JWTConfig struct {
	// Secret must be identical across every instance that validates
	// tokens minted by any other instance.
	Secret         string
	AccessTokenTTL time.Duration
}

type ResetConfig struct {
	CodeTTL         time.Duration
	CleanupInterval time.Duration
}

type SweepConfig struct {
	DeactivationInterval time.Duration
	InactivityWindow     time.Duration
}

type MailConfig struct {
	APIKey   string
	From     string
	FromName string
	Timeout  time.Duration
}

type FirebaseConfig struct {
	ProjectID string
	JWKSURL   string
}

type KafkaConfig struct {
	// Brokers empty means event publishing is disabled.
	Brokers []string
	Topic   string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		HTTP: HTTPConfig{
			Host:               getEnv("HTTP_HOST", ""),
			Port:               getEnv("HTTP_PORT", "8080"),
			PublicPathPrefixes: getListEnv("PUBLIC_PATH_PREFIXES", []string{"/auth/", "/health"}),
		},
		MySQLDSN: mysqlDSN,
		JWT: JWTConfig{
			Secret:         jwtSecret,
			AccessTokenTTL: getDurationEnv("JWT_ACCESS_TOKEN_TTL", time.Hour),
		},
		Reset: ResetConfig{
			CodeTTL:         getDurationEnv("RESET_CODE_TTL", 15*time.Minute),
			CleanupInterval: getDurationEnv("RESET_CLEANUP_INTERVAL", time.Hour),
		},
		Sweep: SweepConfig{
			DeactivationInterval: getDurationEnv("SWEEP_DEACTIVATION_INTERVAL", 24*time.Hour),
			InactivityWindow:     getDurationEnv("SWEEP_INACTIVITY_WINDOW", 14*24*time.Hour),
		},
		Mail: MailConfig{
			APIKey:   os.Getenv("RESEND_API_KEY"),
			From:     getEnv("MAIL_FROM", "noreply@pinceletas.com"),
			FromName: getEnv("MAIL_FROM_NAME", "Pinceletas"),
			Timeout:  getDurationEnv("MAIL_TIMEOUT", time.Minute),
		},
		Firebase: FirebaseConfig{
			ProjectID: os.Getenv("FIREBASE_PROJECT_ID"),
			JWKSURL:   getEnv("FIREBASE_JWKS_URL", firebaseJWKSURL),
		},
		Kafka: KafkaConfig{
			Brokers: getListEnv("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "notifications"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}, nil
}

func (c *Config) DSN() string {
	return c.MySQLDSN
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
