package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadConfig(t *testing.T) {
	dir := writeConfig(t, `
server:
  http_address: ":9001"
  rpc_address: ":9002"
  metrics_address: ":9003"
database:
  backend: memory
feed:
  backend: nats
  nats_url: nats://localhost:4222
game:
  initial_life: 5
`)

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.HTTPAddress != ":9001" {
		t.Errorf("http address = %q", cfg.Server.HTTPAddress)
	}
	if cfg.Database.Backend != "memory" {
		t.Errorf("database backend = %q", cfg.Database.Backend)
	}
	if cfg.Feed.Backend != "nats" || cfg.Feed.NATSURL != "nats://localhost:4222" {
		t.Errorf("feed = %q/%q", cfg.Feed.Backend, cfg.Feed.NATSURL)
	}
	if cfg.Game.InitialLife != 5 {
		t.Errorf("initial life = %d, want the overridden 5", cfg.Game.InitialLife)
	}

	// Unset keys fall back to defaults.
	if cfg.Game.NumberMin != 1 || cfg.Game.NumberMax != 100 {
		t.Errorf("number range = [%d,%d], want [1,100]", cfg.Game.NumberMin, cfg.Game.NumberMax)
	}
	if cfg.Game.RoomCodeLength != 6 {
		t.Errorf("room code length = %d, want 6", cfg.Game.RoomCodeLength)
	}
	if cfg.Game.MinPlayers != 2 {
		t.Errorf("min players = %d, want 2", cfg.Game.MinPlayers)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Error("expected an error for a directory without config.yaml")
	}
}
