package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edgeorchestra/orchestra/pkg/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  port: 5432
cache:
  address: localhost:6379
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("http port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.RPC.Port != 9090 {
		t.Errorf("rpc port = %d, want 9090", cfg.RPC.Port)
	}
	if cfg.Heartbeat.Multiplier != 3 {
		t.Errorf("heartbeat multiplier = %d, want 3", cfg.Heartbeat.Multiplier)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log defaults = %+v", cfg.Log)
	}
	if cfg.Auth.HeaderName != "X-API-Key" {
		t.Errorf("auth header default = %q", cfg.Auth.HeaderName)
	}
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
http:
  port: 9999
  production: true
  allowed_origins: ["https://dash.example.com"]
rpc:
  port: 9091
auth:
  enabled: true
  api_key: secret
  token_expiry: 30m
log:
  level: debug
  format: json
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 9999 || !cfg.HTTP.Production {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if cfg.RPC.Port != 9091 {
		t.Errorf("rpc port = %d", cfg.RPC.Port)
	}
	authCfg, err := cfg.AuthManagerConfig()
	if err != nil {
		t.Fatalf("auth manager config: %v", err)
	}
	if !authCfg.Enabled || authCfg.APIKey != "secret" || authCfg.TokenExpiry.Minutes() != 30 {
		t.Errorf("auth manager config = %+v", authCfg)
	}
}

func TestLoadRejectsPathTraversal(t *testing.T) {
	if _, err := config.Load("../../../etc/passwd.yaml"); err == nil {
		t.Fatal("expected error for path traversal")
	}
}

func TestLoadRejectsNonYAMLExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected error for non-yaml extension")
	}
}

func TestLoadRejectsMalformedTokenExpiry(t *testing.T) {
	path := writeConfig(t, `
auth:
  token_expiry: "not-a-duration"
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := cfg.AuthManagerConfig(); err == nil {
		t.Fatal("expected error for malformed token_expiry")
	}
}
