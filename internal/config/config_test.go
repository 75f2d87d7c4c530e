package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.AccessTTLMinutes != 60 || cfg.RefreshTTLDays != 7 {
		t.Fatalf("TTLs = %d/%d", cfg.AccessTTLMinutes, cfg.RefreshTTLDays)
	}
	if cfg.EnforcementMode != "strict" {
		t.Fatalf("EnforcementMode = %q", cfg.EnforcementMode)
	}
	if cfg.SeedDemoUsers {
		t.Fatalf("demo users should be off by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MCP_HTTP_ADDR", ":9090")
	t.Setenv("RBAC_ENFORCEMENT_MODE", "permissive")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "15")
	t.Setenv("MCP_SEED_DEMO_USERS", "true")

	cfg := Load()
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.EnforcementMode != "permissive" {
		t.Fatalf("EnforcementMode = %q", cfg.EnforcementMode)
	}
	if cfg.AccessTTLMinutes != 15 {
		t.Fatalf("AccessTTLMinutes = %d", cfg.AccessTTLMinutes)
	}
	if !cfg.SeedDemoUsers {
		t.Fatalf("SeedDemoUsers not set")
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "soon")
	t.Setenv("MCP_SEED_DEMO_USERS", "maybe")

	cfg := Load()
	if cfg.AccessTTLMinutes != 60 {
		t.Fatalf("AccessTTLMinutes = %d, want default", cfg.AccessTTLMinutes)
	}
	if cfg.SeedDemoUsers {
		t.Fatalf("SeedDemoUsers should fall back to false")
	}
}
