package config

import (
	"testing"
	"time"
)

func TestLoadAPIFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/spheres")
	t.Setenv("SPHERES_MAX_BLOB_BYTES", "")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("addr got %q want :9090", cfg.Addr)
	}
	if cfg.MaxBlobBytes != 256<<10 {
		t.Fatalf("blob limit got %d", cfg.MaxBlobBytes)
	}

	t.Setenv("DATABASE_URL", "")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected missing DATABASE_URL error")
	}
}

func TestLoadCLIFromEnv(t *testing.T) {
	t.Setenv("SPHERES_SAVE_DIR", "/tmp/spheres-test")
	t.Setenv("SPHERES_VAULT_URL", "https://vault.example.com/")
	t.Setenv("SPHERES_AUTOSAVE_EVERY", "garbage")
	t.Setenv("SPHERES_FRAME_RATE", "1000")
	t.Setenv("SPHERES_DEV_TOOLS", "yes")

	cfg := LoadCLIFromEnv()
	if cfg.SaveDir != "/tmp/spheres-test" {
		t.Fatalf("save dir got %q", cfg.SaveDir)
	}
	if cfg.VaultURL != "https://vault.example.com" {
		t.Fatalf("vault url got %q", cfg.VaultURL)
	}
	if cfg.AutosaveEvery != 5*time.Second {
		t.Fatalf("bad duration must fall back, got %v", cfg.AutosaveEvery)
	}
	if cfg.FrameRate != 30 {
		t.Fatalf("frame rate got %d want 30", cfg.FrameRate)
	}
	if cfg.DevTools {
		t.Fatalf("unparsable bool must fall back to false")
	}
}
