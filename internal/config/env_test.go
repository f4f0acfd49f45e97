package config

import (
	"os"
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int `env:"HIVE_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("HIVE_TEST_PORT", "not-an-int")
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadServer(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("RAILWAY_ENVIRONMENT", "production")
	t.Setenv("HIVE_R2_MIRROR", "false")
	s, err := LoadServer()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !s.Hosted() || s.Addr() != "0.0.0.0:9000" {
		t.Fatalf("hosted=%v addr=%s", s.Hosted(), s.Addr())
	}
	if !s.EnableObserver || s.SnapshotKeep != 50 || s.R2.Workers != 2 {
		t.Fatalf("defaults not applied: %+v", s)
	}
}

func TestLoadServerLocal(t *testing.T) {
	for _, k := range []string{"RAILWAY_ENVIRONMENT", "PORT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	s, err := LoadServer()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Addr() != "localhost:8765" {
		t.Fatalf("addr=%s", s.Addr())
	}
}

func TestLoadServerR2Incomplete(t *testing.T) {
	t.Setenv("HIVE_R2_MIRROR", "true")
	t.Setenv("HIVE_R2_ENDPOINT", "https://example.r2.cloudflarestorage.com")
	if _, err := LoadServer(); err == nil || !strings.Contains(err.Error(), "HIVE_R2_BUCKET") {
		t.Fatalf("expected incomplete R2 error, got %v", err)
	}
}
