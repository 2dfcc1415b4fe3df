package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/classpulse_test")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MEET_API_BASE_URL", "https://meet.example.com")
	t.Setenv("MEET_API_KEY", "test-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Port)
	}
	if cfg.MeetTimeoutSeconds != 15 {
		t.Errorf("Expected default MEET_TIMEOUT_SECONDS=15, got %d", cfg.MeetTimeoutSeconds)
	}
	if cfg.MeetMaxRetries != 2 {
		t.Errorf("Expected default MEET_MAX_RETRIES=2, got %d", cfg.MeetMaxRetries)
	}
	if cfg.JoinGraceMinutes != 5 {
		t.Errorf("Expected default JOIN_GRACE_MINUTES=5, got %d", cfg.JoinGraceMinutes)
	}
	if cfg.HeartbeatStaleSeconds != 120 {
		t.Errorf("Expected default HEARTBEAT_STALE_SECONDS=120, got %d", cfg.HeartbeatStaleSeconds)
	}
	if cfg.AutoLeaveSweepSeconds != 60 {
		t.Errorf("Expected default AUTO_LEAVE_SWEEP_SECONDS=60, got %d", cfg.AutoLeaveSweepSeconds)
	}
}

func TestLoad_PresenceOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JOIN_GRACE_MINUTES", "10")
	t.Setenv("HEARTBEAT_STALE_SECONDS", "300")
	t.Setenv("MEET_MAX_RETRIES", "0")

	cfg := Load()

	if cfg.JoinGraceMinutes != 10 {
		t.Errorf("Expected JOIN_GRACE_MINUTES override 10, got %d", cfg.JoinGraceMinutes)
	}
	if cfg.HeartbeatStaleSeconds != 300 {
		t.Errorf("Expected HEARTBEAT_STALE_SECONDS override 300, got %d", cfg.HeartbeatStaleSeconds)
	}
	if cfg.MeetMaxRetries != 0 {
		t.Errorf("Expected MEET_MAX_RETRIES override 0, got %d", cfg.MeetMaxRetries)
	}
}

func TestLoad_MalformedIntFallsBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JOIN_GRACE_MINUTES", "soon")

	cfg := Load()

	if cfg.JoinGraceMinutes != 5 {
		t.Errorf("Malformed JOIN_GRACE_MINUTES must fall back to 5, got %d", cfg.JoinGraceMinutes)
	}
}

func TestLoad_MissingRequiredPanics(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("MEET_API_KEY")

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when MEET_API_KEY is missing")
		}
	}()

	Load()
}
