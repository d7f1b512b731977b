package config

import (
	"strings"
	"testing"
	"time"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing AUTH_SECRET to fail validation")
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "DATA_BACKEND", "SHOPS", "DASHBOARD_CACHE_TTL", "TIMEZONE", "ADMIN_PASSWORD", "ADMIN_USERNAME"} {
		t.Setenv(key, "")
	}
	t.Setenv("AUTH_SECRET", strongSecret)

	cfg := Load()
	if cfg.DataBackend != BackendMemory {
		t.Fatalf("expected memory backend without DATABASE_URL, got %q", cfg.DataBackend)
	}
	if len(cfg.Shops) != 2 || cfg.Shops[0] != "Mobile House 1(shed)" {
		t.Fatalf("expected default shops, got %v", cfg.Shops)
	}
	if cfg.DashboardCacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m cache ttl, got %s", cfg.DashboardCacheTTL)
	}
	if cfg.AdminUsername != "admin" {
		t.Fatalf("expected default admin username, got %q", cfg.AdminUsername)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sales")
	t.Setenv("DATA_BACKEND", "")
	t.Setenv("SHOPS", " Shop A , ,Shop B,Shop A")
	t.Setenv("DASHBOARD_CACHE_TTL", "90")
	t.Setenv("REDIS_DB", "2")

	cfg := Load()
	if cfg.DataBackend != BackendPostgres {
		t.Fatalf("expected postgres backend when DATABASE_URL is set, got %q", cfg.DataBackend)
	}
	if strings.Join(cfg.Shops, "|") != "Shop A|Shop B" {
		t.Fatalf("expected trimmed unique shops, got %v", cfg.Shops)
	}
	if cfg.DashboardCacheTTL != 90*time.Second {
		t.Fatalf("expected 90s ttl, got %s", cfg.DashboardCacheTTL)
	}
	if cfg.RedisDB != 2 {
		t.Fatalf("expected redis db 2, got %d", cfg.RedisDB)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Config{
		DataBackend:   BackendPostgres,
		AuthSecret:    "short",
		Timezone:      "Mars/Olympus",
		AMQPURL:       "amqp://localhost",
		AdminPassword: "pw",
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"DATABASE_URL", "AUTH_SECRET", "SHOPS", "TIMEZONE", "AMQP_EXCHANGE", "ADMIN_PASSWORD"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %v", want, err)
		}
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Config{DataBackend: "mongo", AuthSecret: strongSecret, Shops: DefaultShops, Timezone: "UTC"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DATA_BACKEND") {
		t.Fatalf("expected DATA_BACKEND error, got %v", err)
	}
}
