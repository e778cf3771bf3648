package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoicedeck.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9999\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadBytes != DefaultMaxUploadBytes {
		t.Errorf("MaxUploadBytes = %d, want default", cfg.Server.MaxUploadBytes)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Storage.Backend)
	}
}

func TestLoadExpandsAccessTokenFromEnv(t *testing.T) {
	t.Setenv("INVOICEDECK_ACCESS_TOKEN", "s3cret")
	path := writeConfig(t, "auth:\n  access_token: \"${INVOICEDECK_ACCESS_TOKEN}\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.AccessToken != "s3cret" {
		t.Errorf("AccessToken = %q, want expanded env value", cfg.Auth.AccessToken)
	}
}

func TestLoadLiteralAccessTokenUnchanged(t *testing.T) {
	path := writeConfig(t, "auth:\n  access_token: plain-token\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.AccessToken != "plain-token" {
		t.Errorf("AccessToken = %q, want plain-token", cfg.Auth.AccessToken)
	}
}
