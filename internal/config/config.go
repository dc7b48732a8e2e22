package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	BioTime    BioTimeConfig
	Attendance AttendanceConfig
	Schedule   ScheduleConfig
	Admin      AdminConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port          int
	Env           string
	LogLevel      string
	FrontendURL   string
	WebhookSecret string
}

// BioTimeConfig holds the device controller connection settings
type BioTimeConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	TokenTTL time.Duration
	PageSize int
	MaxPages int
}

// AttendanceConfig holds the reference timezone and classification cutoffs.
// Cutoffs are "15:04" clock strings in the reference timezone.
type AttendanceConfig struct {
	Timezone       string
	DecisionTime   string
	LateAfter      string
	EarlyOutBefore string
}

// ScheduleConfig holds the background job intervals
type ScheduleConfig struct {
	PunchSyncInterval     time.Duration
	PunchSyncTimeout      time.Duration
	ReconcileInterval     time.Duration
	ReconcileTimeout      time.Duration
	ReconcileAfterHour    int
	DirectorySyncInterval time.Duration
}

// AdminConfig seeds the first dashboard account when the users table is empty
type AdminConfig struct {
	Email    string
	Password string
}

func Load() (*Config, error) {
	// .env is optional; real deployments inject the environment directly
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "biotime_attendance"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:          appPort,
		Env:           getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "12h"),
	}

	// BioTime configuration
	timeout, err := getEnvDuration("BIOTIME_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	tokenTTL, err := getEnvDuration("BIOTIME_TOKEN_TTL", 25*time.Minute)
	if err != nil {
		return nil, err
	}
	pageSize, err := strconv.Atoi(getEnv("BIOTIME_PAGE_SIZE", "200"))
	if err != nil {
		return nil, fmt.Errorf("invalid BIOTIME_PAGE_SIZE: %w", err)
	}
	maxPages, err := strconv.Atoi(getEnv("BIOTIME_MAX_PAGES", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid BIOTIME_MAX_PAGES: %w", err)
	}

	config.BioTime = BioTimeConfig{
		BaseURL:  strings.TrimRight(getEnv("BIOTIME_URL", ""), "/"),
		Username: getEnv("BIOTIME_USER", ""),
		Password: getEnv("BIOTIME_PASS", ""),
		Timeout:  timeout,
		TokenTTL: tokenTTL,
		PageSize: pageSize,
		MaxPages: maxPages,
	}

	// Attendance classification
	config.Attendance = AttendanceConfig{
		Timezone:       getEnv("ATTENDANCE_TIMEZONE", "Asia/Qatar"),
		DecisionTime:   getEnv("ATTENDANCE_DECISION_TIME", "10:00"),
		LateAfter:      getEnv("ATTENDANCE_LATE_AFTER", "08:30"),
		EarlyOutBefore: getEnv("ATTENDANCE_EARLY_OUT_BEFORE", "15:30"),
	}

	// Schedule configuration
	punchSyncInterval, err := getEnvDuration("PUNCH_SYNC_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	punchSyncTimeout, err := getEnvDuration("PUNCH_SYNC_TIMEOUT", 4*time.Minute)
	if err != nil {
		return nil, err
	}
	reconcileInterval, err := getEnvDuration("RECONCILE_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	reconcileTimeout, err := getEnvDuration("RECONCILE_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	reconcileAfterHour, err := strconv.Atoi(getEnv("RECONCILE_AFTER_HOUR", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_AFTER_HOUR: %w", err)
	}
	directorySyncInterval, err := getEnvDuration("DIRECTORY_SYNC_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	config.Schedule = ScheduleConfig{
		PunchSyncInterval:     punchSyncInterval,
		PunchSyncTimeout:      punchSyncTimeout,
		ReconcileInterval:     reconcileInterval,
		ReconcileTimeout:      reconcileTimeout,
		ReconcileAfterHour:    reconcileAfterHour,
		DirectorySyncInterval: directorySyncInterval,
	}

	config.Admin = AdminConfig{
		Email:    getEnv("ADMIN_EMAIL", ""),
		Password: getEnv("ADMIN_PASSWORD", ""),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.BioTime.BaseURL == "" {
		return fmt.Errorf("BIOTIME_URL is required")
	}
	if c.BioTime.Username == "" || c.BioTime.Password == "" {
		return fmt.Errorf("BIOTIME_USER and BIOTIME_PASS are required")
	}
	if c.BioTime.PageSize <= 0 {
		return fmt.Errorf("BIOTIME_PAGE_SIZE must be positive")
	}
	if c.BioTime.MaxPages <= 0 {
		return fmt.Errorf("BIOTIME_MAX_PAGES must be positive")
	}
	if _, err := time.LoadLocation(c.Attendance.Timezone); err != nil {
		return fmt.Errorf("invalid ATTENDANCE_TIMEZONE: %w", err)
	}
	for key, v := range map[string]string{
		"ATTENDANCE_DECISION_TIME":    c.Attendance.DecisionTime,
		"ATTENDANCE_LATE_AFTER":       c.Attendance.LateAfter,
		"ATTENDANCE_EARLY_OUT_BEFORE": c.Attendance.EarlyOutBefore,
	} {
		if _, err := ParseClock(v); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	if c.Schedule.ReconcileAfterHour < 0 || c.Schedule.ReconcileAfterHour > 23 {
		return fmt.Errorf("RECONCILE_AFTER_HOUR must be between 0 and 23")
	}
	return nil
}

// Location returns the reference timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Attendance.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
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

// ParseClock parses a "15:04" clock string into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
