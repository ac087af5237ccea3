package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/canopy")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", " http://a.test , ,http://b.test")
	t.Setenv("APP_BASE_URL", "https://canopy.test/")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("REMINDER_WINDOW_HOURS", "not-a-number")

	cfg := Load()
	if cfg.JWTIssuer != "canopy" {
		t.Fatalf("issuer default: %q", cfg.JWTIssuer)
	}
	if len(cfg.CorsOrigins) != 2 || cfg.CorsOrigins[1] != "http://b.test" {
		t.Fatalf("cors origins: %#v", cfg.CorsOrigins)
	}
	if cfg.AppBaseURL != "https://canopy.test" {
		t.Fatalf("base url should be trimmed: %q", cfg.AppBaseURL)
	}
	if cfg.KafkaBrokers != nil {
		t.Fatalf("expected no brokers, got %#v", cfg.KafkaBrokers)
	}
	if cfg.ReminderWindowHours != 24 {
		t.Fatalf("invalid int should fall back, got %d", cfg.ReminderWindowHours)
	}
	if cfg.ReminderSchedule != "@every 15m" {
		t.Fatalf("schedule default: %q", cfg.ReminderSchedule)
	}
	if cfg.OSSEnabled() {
		t.Fatal("oss should be disabled without credentials")
	}
}

func TestLoadPanicsWithoutRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for missing DATABASE_URL")
		}
	}()
	Load()
}

func TestLogRetentionIsClamped(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/canopy")
	t.Setenv("JWT_SECRET", "secret")

	t.Setenv("LOG_RETENTION_DAYS", "30")
	if got := Load().LogRetentionDays; got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	t.Setenv("LOG_RETENTION_DAYS", "0")
	if got := Load().LogRetentionDays; got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	t.Setenv("LOG_DIR", "")
	if got := Load().LogDir; got != "storage/logs" {
		t.Fatalf("log dir default: %q", got)
	}
}
