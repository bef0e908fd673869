package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Booking   BookingConfig
	Bootstrap BootstrapConfig
	WebOrigin string
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Driver   string // "postgres" or "sqlite"
	URL      string
	MaxConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type BookingConfig struct {
	Timezone          string
	RetentionDays     int
	GuestCodePattern  string
	FastSyncInterval  time.Duration
	FullResetInterval time.Duration
	PurgeThrottle     time.Duration
	PurgeSchedule     string
}

// BootstrapConfig describes the admin account seeded on first start.
type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
	AdminQR       string
}

// LoadEnv loads a .env file into the process environment if one exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("reading .env failed", "error", err)
	}
}

func Load() (*Config, error) {
	port, err := getEnvInt("PORT", 3001)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	retention, err := getEnvInt("RESERVATION_RETENTION_DAYS", 90)
	if err != nil {
		return nil, fmt.Errorf("invalid RESERVATION_RETENTION_DAYS: %w", err)
	}
	tokenTTL, err := getEnvDuration("TOKEN_TTL", 12*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	fastSync, err := getEnvDuration("FAST_SYNC_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid FAST_SYNC_INTERVAL: %w", err)
	}
	fullReset, err := getEnvDuration("FULL_RESET_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid FULL_RESET_INTERVAL: %w", err)
	}
	purgeThrottle, err := getEnvDuration("PURGE_THROTTLE", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid PURGE_THROTTLE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: maxConns,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"), // empty: single-process mode
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  tokenTTL,
		},
		Booking: BookingConfig{
			Timezone:          getEnv("BOOKING_TIMEZONE", "Europe/Zurich"),
			RetentionDays:     retention,
			GuestCodePattern:  getEnv("GUEST_CODE_PATTERN", `^GUEST\d{3,}$`),
			FastSyncInterval:  fastSync,
			FullResetInterval: fullReset,
			PurgeThrottle:     purgeThrottle,
			PurgeSchedule:     getEnv("PURGE_SCHEDULE", "0 3 * * *"),
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: getEnv("ADMIN_USERNAME", ""),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
			AdminQR:       getEnv("ADMIN_QR", ""),
		},
		WebOrigin: getEnv("WEB_ORIGIN", "http://localhost:5173"),
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location resolves the booking timezone used for zone-less input.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Booking.Timezone)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Booking.RetentionDays <= 0 {
		return fmt.Errorf("RESERVATION_RETENTION_DAYS must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid BOOKING_TIMEZONE: %w", err)
	}
	if _, err := regexp.Compile(c.Booking.GuestCodePattern); err != nil {
		return fmt.Errorf("invalid GUEST_CODE_PATTERN: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
