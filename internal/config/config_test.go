package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("XIANGQI_ENGINE_PATH", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EnginePreset != "master" || cfg.EngineSide != "black" {
		t.Fatalf("engine defaults = %q %q", cfg.EnginePreset, cfg.EngineSide)
	}
	if cfg.HandshakeTimeout != 5*time.Second || cfg.SearchTimeout != 30*time.Second {
		t.Fatalf("timeouts = %s %s", cfg.HandshakeTimeout, cfg.SearchTimeout)
	}
	if cfg.EngineEnabled() {
		t.Fatalf("engine should be disabled without a path")
	}
	if cfg.ListenAddr != "127.0.0.1:7878" {
		t.Fatalf("listen addr = %q", cfg.ListenAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("XIANGQI_ENGINE_PATH", " /usr/bin/pikafish ")
	t.Setenv("XIANGQI_ENGINE_ARGS", "--threads 2")
	t.Setenv("XIANGQI_ENGINE_PRESET", "Club")
	t.Setenv("XIANGQI_ENGINE_SIDE", "RED")
	t.Setenv("XIANGQI_SEARCH_TIMEOUT", "45")
	t.Setenv("XIANGQI_SNAPSHOT_TTL", "2h")
	t.Setenv("XIANGQI_ARCHIVE_SIZE", "nope")
	t.Setenv("XIANGQI_PRESETS_FILE", " /etc/xiangqi/presets.yaml ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EnginePath != "/usr/bin/pikafish" || !cfg.EngineEnabled() {
		t.Fatalf("engine path = %q", cfg.EnginePath)
	}
	if len(cfg.EngineArgs) != 2 || cfg.EngineArgs[0] != "--threads" {
		t.Fatalf("engine args = %v", cfg.EngineArgs)
	}
	if cfg.EnginePreset != "club" || cfg.EngineSide != "red" {
		t.Fatalf("preset/side = %q %q", cfg.EnginePreset, cfg.EngineSide)
	}
	if cfg.SearchTimeout != 45*time.Second {
		t.Fatalf("search timeout = %s", cfg.SearchTimeout)
	}
	if cfg.SnapshotTTL != 2*time.Hour {
		t.Fatalf("snapshot ttl = %s", cfg.SnapshotTTL)
	}
	if cfg.ArchiveSize != 20 {
		t.Fatalf("archive size should keep default, got %d", cfg.ArchiveSize)
	}
	if cfg.PresetsFile != "/etc/xiangqi/presets.yaml" {
		t.Fatalf("presets file = %q", cfg.PresetsFile)
	}
}

func TestLoadRequiresRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without REDIS_URL")
	}
}

func TestLoadRejectsBadSide(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("XIANGQI_ENGINE_SIDE", "green")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown side")
	}
}

func TestLoadWatchAddr(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("XIANGQI_WATCH_ADDR", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WatchAddr != "" {
		t.Fatalf("empty XIANGQI_WATCH_ADDR should disable the feed, got %q", cfg.WatchAddr)
	}

	t.Setenv("XIANGQI_WATCH_ADDR", " 0.0.0.0:9000 ")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WatchAddr != "0.0.0.0:9000" {
		t.Fatalf("watch addr = %q", cfg.WatchAddr)
	}
}
