package config

import "testing"

func TestLoadDefaultsToPostgresSessions(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	cfg := Load()
	if cfg.RedisURL != "" {
		t.Fatalf("RedisURL = %q, want empty so refresh tokens use Postgres", cfg.RedisURL)
	}
}

func TestLoadReadsRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg := Load()
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("RedisURL = %q", cfg.RedisURL)
	}
}
