package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sosodev/duration"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-useraccess/pkg/notification"
)

type DatabaseConfig struct {
	Host     string `env:"IDM_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"IDM_PG_PORT" env-default:"5432"`
	Database string `env:"IDM_PG_DATABASE" env-default:"useraccess_db"`
	User     string `env:"IDM_PG_USER" env-default:"useraccess"`
	Password string `env:"IDM_PG_PASSWORD" env-default:"pwd"`
}

// ToDbConfig converts the config to a db-utils DbConfig
func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

type JWTConfig struct {
	Secret            string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer            string `env:"JWT_ISSUER" env-default:"simple-useraccess"`
	Audience          string `env:"JWT_AUDIENCE" env-default:"simple-useraccess"`
	AccessTokenExpiry string `env:"ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	CookieSecure      bool   `env:"COOKIE_SECURE" env-default:"true"`
}

// ParseAccessTokenExpiry parses the access token expiry duration
func (j JWTConfig) ParseAccessTokenExpiry() (time.Duration, error) {
	return parseDurationISO8601(j.AccessTokenExpiry)
}

// TokenConfig holds the lifetimes of the stored tokens.
type TokenConfig struct {
	RefreshTokenExpiry       string `env:"REFRESH_TOKEN_EXPIRY" env-default:"12h"`
	VerificationTokenExpiry  string `env:"VERIFICATION_TOKEN_EXPIRY" env-default:"12h"`
	PasswordResetTokenExpiry string `env:"PASSWORD_RESET_TOKEN_EXPIRY" env-default:"1h"`
	RefreshTokenRotation     bool   `env:"REFRESH_TOKEN_ROTATION" env-default:"true"`
}

func (t TokenConfig) ParseRefreshTokenExpiry() (time.Duration, error) {
	return parseDurationISO8601(t.RefreshTokenExpiry)
}

func (t TokenConfig) ParseVerificationTokenExpiry() (time.Duration, error) {
	return parseDurationISO8601(t.VerificationTokenExpiry)
}

func (t TokenConfig) ParsePasswordResetTokenExpiry() (time.Duration, error) {
	return parseDurationISO8601(t.PasswordResetTokenExpiry)
}

type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     int    `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:""`
	Password string `env:"EMAIL_PASSWORD" env-default:""`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     e.Port,
		TLS:      e.TLS,
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
	}
}

// MailMqConfig locates the Redis list used as the outbound mail queue.
type MailMqConfig struct {
	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`
	QueueName     string `env:"MAIL_MQ_QUEUE_NAME" env-default:"mail-queue"`
}

func (m MailMqConfig) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     m.RedisAddr,
		Password: m.RedisPassword,
		DB:       m.RedisDB,
	}
}

type RegistrationConfig struct {
	BaseURL     string `env:"BASE_URL" env-default:"http://localhost:8080"`
	DefaultRole string `env:"REGISTRATION_DEFAULT_ROLE" env-default:""`
}

type PasswordConfig struct {
	Algorithm string `env:"PASSWORD_ALGORITHM" env-default:"bcrypt"`
}

// PasswordComplexityConfig is copied field by field into auth.PasswordComplexity.
type PasswordComplexityConfig struct {
	RequiredDigit           bool `env:"PASSWORD_COMPLEXITY_REQUIRE_DIGIT" env-default:"false"`
	RequiredLowercase       bool `env:"PASSWORD_COMPLEXITY_REQUIRE_LOWERCASE" env-default:"false"`
	RequiredNonAlphanumeric bool `env:"PASSWORD_COMPLEXITY_REQUIRE_NON_ALPHANUMERIC" env-default:"false"`
	RequiredUppercase       bool `env:"PASSWORD_COMPLEXITY_REQUIRE_UPPERCASE" env-default:"false"`
	RequiredLength          int  `env:"PASSWORD_COMPLEXITY_REQUIRED_LENGTH" env-default:"0"`
}

type Config struct {
	Database           DatabaseConfig
	JWT                JWTConfig
	Token              TokenConfig
	Email              EmailConfig
	MailMq             MailMqConfig
	Registration       RegistrationConfig
	Password           PasswordConfig
	PasswordComplexity PasswordComplexityConfig
	LogLevel           string `env:"LOG_LEVEL" env-default:"info"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read configuration: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadEnvFile merges a .env file next to the executable, or in the working
// directory, into the process environment. A missing file is not an error.
func LoadEnvFile() {
	envFile := ""
	if execPath, err := os.Executable(); err == nil {
		envFile = filepath.Join(filepath.Dir(execPath), ".env")
	}

	if _, err := os.Stat(envFile); envFile == "" || os.IsNotExist(err) {
		cwd, _ := os.Getwd()
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Debug("No .env file found (using environment variables or defaults)")
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}

// parseDurationISO8601 tries to parse duration as ISO8601 first, then Go duration
func parseDurationISO8601(s string) (time.Duration, error) {
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}
