package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port     int
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis (optional; booking lock degrades to DB-only when unset)
	RedisAddr     string
	RedisPassword string

	// Auth
	JWTSecret string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeSuccessURL    string
	StripeCancelURL     string

	// Daily.co video rooms
	DailyAPIKey  string
	DailyBaseURL string

	// Google Calendar
	GoogleCalendarID          string
	GoogleCalendarCredentials string

	// Clinic
	ClinicName     string
	ClinicEmail    string
	ClinicTimezone string

	// Public site base for patient-facing links (referral booking links)
	PublicBaseURL string

	// Scheduling
	SlotMinutes      int
	WorkingHourStart int
	WorkingHourEnd   int
	BookingLockTTL   time.Duration
	RequirePayment   bool

	// Email
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string

	// AWS (SES fallback sender)
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// CORS
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnvAsInt("PORT", 8080),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeSuccessURL:    getEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/booking/success"),
		StripeCancelURL:     getEnv("STRIPE_CANCEL_URL", "http://localhost:3000/booking/cancelled"),

		DailyAPIKey:  getEnv("DAILY_API_KEY", ""),
		DailyBaseURL: getEnv("DAILY_BASE_URL", "https://api.daily.co/v1"),

		GoogleCalendarID:          getEnv("GOOGLE_CALENDAR_ID", ""),
		GoogleCalendarCredentials: getEnv("GOOGLE_CALENDAR_CREDENTIALS", ""),

		ClinicName:     getEnv("CLINIC_NAME", "Surecan Clinic"),
		ClinicEmail:    getEnv("CLINIC_EMAIL", ""),
		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "Australia/Brisbane"),

		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),

		SlotMinutes:      getEnvAsInt("SLOT_MINUTES", 30),
		WorkingHourStart: getEnvAsInt("WORKING_HOUR_START", 9),
		WorkingHourEnd:   getEnvAsInt("WORKING_HOUR_END", 17),
		BookingLockTTL:   getEnvAsDuration("BOOKING_LOCK_TTL", 10*time.Second),
		RequirePayment:   getEnvAsBool("REQUIRE_PAYMENT", true),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", "bookings@surecan.example"),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Surecan Bookings"),

		AWSRegion:          getEnv("AWS_REGION", "ap-southeast-2"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" && cfg.Env != "development" {
		return nil, fmt.Errorf("config: JWT_SECRET is required outside development")
	}
	if cfg.SlotMinutes <= 0 {
		return nil, fmt.Errorf("config: SLOT_MINUTES must be positive")
	}
	if cfg.WorkingHourStart < 0 || cfg.WorkingHourEnd > 24 || cfg.WorkingHourStart >= cfg.WorkingHourEnd {
		return nil, fmt.Errorf("config: working hours %d-%d are invalid", cfg.WorkingHourStart, cfg.WorkingHourEnd)
	}
	if _, err := time.LoadLocation(cfg.ClinicTimezone); err != nil {
		return nil, fmt.Errorf("config: CLINIC_TIMEZONE %q: %w", cfg.ClinicTimezone, err)
	}

	return cfg, nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves the clinic timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
