package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port    string
	GinMode string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	JWTSecret  string
	JWTTTL     time.Duration
	RefreshTTL time.Duration

	CORSOrigins []string

	RedisAddr      string
	RedisDB        int
	IdempotencyTTL time.Duration

	UploadDir      string
	UploadMaxBytes int64

	SendGridAPIKey string
	MailFrom       string
	PublicBaseURL  string

	LogLevel string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("REFRESH_TTL", 7*24*time.Hour)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("IDEMPOTENCY_TTL", 10*time.Minute)
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 10<<20)
	v.SetDefault("MAIL_FROM", "noreply@academy.local")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()
	return v
}

// Load reads configs/.env when present, then the environment, over built-in defaults.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// a missing file is fine, real deployments use the environment
		_ = godotenv.Load(envFile)
	}
	v := newViper()

	c := &Config{
		Port:           v.GetString("PORT"),
		GinMode:        v.GetString("GIN_MODE"),
		DBHost:         v.GetString("DB_HOST"),
		DBPort:         v.GetString("DB_PORT"),
		DBUser:         v.GetString("DB_USER"),
		DBPassword:     v.GetString("DB_PASSWORD"),
		DBName:         v.GetString("DB_NAME"),
		DBSslMode:      v.GetString("DB_SSLMODE"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTTTL:         v.GetDuration("JWT_TTL"),
		RefreshTTL:     v.GetDuration("REFRESH_TTL"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisDB:        v.GetInt("REDIS_DB"),
		IdempotencyTTL: v.GetDuration("IDEMPOTENCY_TTL"),
		UploadDir:      v.GetString("UPLOAD_DIR"),
		UploadMaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		MailFrom:       v.GetString("MAIL_FROM"),
		PublicBaseURL:  v.GetString("PUBLIC_BASE_URL"),
		LogLevel:       v.GetString("LOG_LEVEL"),
	}

	if c.JWTSecret == "" && !c.Release() {
		c.JWTSecret = "default_super_secret_key" // Development fallback only
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Release() bool { return c.GinMode == "release" }

func (c *Config) Validate() error {
	if c.DBHost == "" || c.DBPort == "" || c.DBUser == "" || c.DBName == "" {
		return errors.New("missing database config (DB_HOST/DB_PORT/DB_USER/DB_NAME)")
	}
	if _, err := net.LookupPort("tcp", c.DBPort); err != nil {
		return fmt.Errorf("invalid DB_PORT %q: %w", c.DBPort, err)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in release mode")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.UploadMaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + net.JoinHostPort(c.DBHost, c.DBPort) + "/" + c.DBName + "?sslmode=" + c.DBSslMode
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
