package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"trackline/internal/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if cfg.Server.BasePath != "/v1" {
		t.Fatalf("base_path = %q", cfg.Server.BasePath)
	}
	if cfg.Server.AllowLegacyActorHeader {
		t.Fatalf("legacy header should be off by default")
	}
	if len(cfg.Review.ApprovePatterns) == 0 || len(cfg.Review.RequestChangesPatterns) == 0 {
		t.Fatalf("expected default review patterns")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadOptionalFallsBack(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Server.BasePath != "/v1" {
		t.Fatalf("expected defaults, got %q", cfg.Server.BasePath)
	}
	if _, err := config.Load(dir); err == nil {
		t.Fatalf("strict load should fail without a file")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`server:
  base_path: /api
  allow_legacy_actor_header: true
  webhooks:
    - url: http://127.0.0.1:9999/hook
review:
  approve_patterns:
    - ship it
`)
	if err := os.WriteFile(filepath.Join(dir, "trackline.yml"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.BasePath != "/api" || !cfg.Server.AllowLegacyActorHeader {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if len(cfg.Server.Webhooks) != 1 || cfg.Server.Webhooks[0].URL == "" {
		t.Fatalf("unexpected webhooks: %+v", cfg.Server.Webhooks)
	}
	if len(cfg.Review.ApprovePatterns) != 1 || cfg.Review.ApprovePatterns[0] != "ship it" {
		t.Fatalf("unexpected patterns: %+v", cfg.Review.ApprovePatterns)
	}

	// loading by explicit path sees the same file
	byPath, err := config.FromFile(filepath.Join(dir, "trackline.yml"))
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	if byPath.Server.BasePath != cfg.Server.BasePath {
		t.Fatalf("path load base_path = %q", byPath.Server.BasePath)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []string{
		"server:\n  base_path: v1\n",
		"review:\n  approve_patterns:\n    - \"  \"\n",
		"server:\n  webhooks:\n    - url: \"\"\n",
	}
	for _, raw := range cases {
		if _, err := config.FromYAML([]byte(raw)); err == nil {
			t.Fatalf("expected validation error for %q", raw)
		}
	}
}
