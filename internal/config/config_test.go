package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/clinic")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENV", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.SlotMinutes != 30 {
		t.Errorf("SlotMinutes = %d, want 30", cfg.SlotMinutes)
	}
	if cfg.WorkingHourStart != 9 || cfg.WorkingHourEnd != 17 {
		t.Errorf("working hours = %d-%d, want 9-17", cfg.WorkingHourStart, cfg.WorkingHourEnd)
	}
	if cfg.BookingLockTTL != 10*time.Second {
		t.Errorf("BookingLockTTL = %v, want 10s", cfg.BookingLockTTL)
	}
	if !cfg.RequirePayment {
		t.Error("RequirePayment should default to true")
	}
	if cfg.IsProduction() {
		t.Error("IsProduction() should be false in development")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without DATABASE_URL")
	}
}

func TestLoadRequiresJWTSecretInProduction(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/clinic")
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail in production without JWT_SECRET")
	}
}

func TestLoadRejectsInvalidWorkingHours(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/clinic")
	t.Setenv("WORKING_HOUR_START", "18")
	t.Setenv("WORKING_HOUR_END", "9")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject inverted working hours")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/clinic")
	t.Setenv("PORT", "9090")
	t.Setenv("SLOT_MINUTES", "15")
	t.Setenv("BOOKING_LOCK_TTL", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://surecan.example, https://app.surecan.example")
	t.Setenv("CLINIC_TIMEZONE", "Australia/Sydney")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.SlotMinutes != 15 {
		t.Errorf("SlotMinutes = %d, want 15", cfg.SlotMinutes)
	}
	if cfg.BookingLockTTL != 5*time.Second {
		t.Errorf("BookingLockTTL = %v, want 5s", cfg.BookingLockTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[0] != "https://surecan.example" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.Location().String() != "Australia/Sydney" {
		t.Errorf("Location() = %v, want Australia/Sydney", cfg.Location())
	}
}
