package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerAddr string
	Env        string
	LogLevel   string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Auth
	JWTSecret        string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	BcryptCost       int
	// AutoVerify marks new registrations as verified without an email
	// round-trip. Defaults to on outside production.
	AutoVerify bool

	CORSOrigins []string
	RedisAddr   string

	// Email (Resend)
	ResendAPIKey string
	EmailFrom    string
	AppURL       string

	// MinIO/S3 configuration for avatar storage
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

func Load() *Config {
	env := getEnvOrDefault("APP_ENV", "development")

	bcryptCost, _ := strconv.Atoi(getEnvOrDefault("BCRYPT_COST", "12"))
	if bcryptCost <= 0 {
		bcryptCost = 12
	}

	autoVerify, _ := strconv.ParseBool(getEnvOrDefault("AUTO_VERIFY", strconv.FormatBool(env != "production")))
	minioUseSSL, _ := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", "false"))

	jwtSecret := getEnvOrDefault("JWT_SECRET", generateDefaultSecret())

	return &Config{
		ServerAddr: getEnvOrDefault("SERVER_ADDR", ":8080"),
		Env:        env,
		LogLevel:   getEnvOrDefault("LOG_LEVEL", defaultLogLevel(env)),
		DBHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:     getEnvOrDefault("DB_PORT", "5432"),
		DBUser:     getEnvOrDefault("DB_USER", "finwise"),
		DBPassword: getEnvOrDefault("DB_PASSWORD", "finwise_dev_password"),
		DBName:     getEnvOrDefault("DB_NAME", "finwise"),

		JWTSecret: jwtSecret,
		// Falls back to the access secret when no distinct refresh
		// secret is configured.
		JWTRefreshSecret: getEnvOrDefault("JWT_REFRESH_SECRET", jwtSecret),
		AccessTokenTTL:   getDurationOrDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:  getDurationOrDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		BcryptCost:       bcryptCost,
		AutoVerify:       autoVerify,

		CORSOrigins: splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:5173")),
		RedisAddr:   getEnvOrDefault("REDIS_ADDR", "localhost:6379"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getEnvOrDefault("EMAIL_FROM", "noreply@finwise.app"),
		AppURL:       getEnvOrDefault("APP_URL", "http://localhost:5173"),

		MinioEndpoint:  getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    getEnvOrDefault("MINIO_BUCKET", "avatars"),
		MinioUseSSL:    minioUseSSL,
	}
}

// IsProduction reports whether the server runs in production mode. The
// refresh cookie is only marked Secure in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func defaultLogLevel(env string) string {
	if env == "production" {
		return "info"
	}
	return "debug"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production"
	}
	return hex.EncodeToString(bytes)
}
