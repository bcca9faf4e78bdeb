package postgres

import (
	"testing"
	"time"
)

func TestPoolConfig_AppliesSettings(t *testing.T) {
	cfg := DefaultDBConfig("postgres://u:p@localhost:5432/unreal?sslmode=disable")

	pc, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("poolConfig failed: %v", err)
	}

	if pc.MaxConns != 10 || pc.MinConns != 2 {
		t.Errorf("unexpected pool size %d/%d", pc.MaxConns, pc.MinConns)
	}
	if pc.MaxConnLifetime != 30*time.Minute || pc.HealthCheckPeriod != 30*time.Second {
		t.Errorf("unexpected lifetimes %s/%s", pc.MaxConnLifetime, pc.HealthCheckPeriod)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != "unreal-dashboard" {
		t.Errorf("unexpected application_name %q", got)
	}
	if got := pc.ConnConfig.RuntimeParams["statement_timeout"]; got != "15000" {
		t.Errorf("unexpected statement_timeout %q", got)
	}
}

func TestPoolConfig_ZeroValuesKeepDriverDefaults(t *testing.T) {
	pc, err := poolConfig(DBConfig{URL: "postgres://localhost:5432/unreal?application_name=psql"})
	if err != nil {
		t.Fatalf("poolConfig failed: %v", err)
	}
	if pc.MaxConns <= 0 {
		t.Errorf("expected driver default max conns, got %d", pc.MaxConns)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != "psql" {
		t.Errorf("URL application_name must survive, got %q", got)
	}
	if _, ok := pc.ConnConfig.RuntimeParams["statement_timeout"]; ok {
		t.Error("statement_timeout must not be set")
	}
}

func TestPoolConfig_MinConnsCappedByMax(t *testing.T) {
	pc, err := poolConfig(DBConfig{URL: "postgres://localhost/unreal", MaxConns: 1, MinConns: 4})
	if err != nil {
		t.Fatalf("poolConfig failed: %v", err)
	}
	if pc.MinConns != 1 {
		t.Errorf("expected min conns capped to 1, got %d", pc.MinConns)
	}
}

func TestPoolConfig_InvalidURL(t *testing.T) {
	if _, err := poolConfig(DBConfig{URL: "postgres://[::1"}); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}
