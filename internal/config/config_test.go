package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ADMIN_PASSWORD_HASH", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.AdminPasswordHash != "" {
		t.Fatalf("expected empty ADMIN_PASSWORD_HASH when unset, got %q", cfg.AdminPasswordHash)
	}
}

func TestLoadFallsBackOnBadNumbers(t *testing.T) {
	t.Setenv("STATS_TTL_SECONDS", "not-a-number")
	t.Setenv("CONNECTIVITY_PROBE_SECONDS", "-3")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "0")

	cfg := Load()
	if cfg.StatsTTLSeconds != 30 {
		t.Fatalf("expected stats ttl fallback 30, got %d", cfg.StatsTTLSeconds)
	}
	if cfg.ConnectivityProbeSecs != 5 {
		t.Fatalf("expected probe fallback 5, got %d", cfg.ConnectivityProbeSecs)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected token ttl fallback 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}

func TestLocalDBPathDefault(t *testing.T) {
	t.Setenv("LOCAL_DB_PATH", "")
	cfg := Load()
	if cfg.LocalDBPath != "terminal.db" {
		t.Fatalf("expected default local db path, got %q", cfg.LocalDBPath)
	}
}
