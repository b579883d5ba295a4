package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func writePresets(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "presets.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadPresets(t *testing.T) {
	path := writePresets(t, `
presets:
  - name: Blitz
    depth: 5
    movetime_ms: 200
    elo: 1500
`)
	names, err := LoadPresets(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer func() {
		presetMu.Lock()
		delete(DefaultPresets, "blitz")
		presetMu.Unlock()
	}()
	if len(names) != 1 || names[0] != "blitz" {
		t.Fatalf("names = %v", names)
	}
	p, err := GetPreset("blitz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.DepthCap != 5 || p.MoveTimeMillis != 200 || p.Elo != 1500 {
		t.Fatalf("blitz = %+v", p)
	}
}

func TestLoadPresetsRejectsInvalidFile(t *testing.T) {
	path := writePresets(t, `
presets:
  - name: fine
    depth: 3
  - name: broken
    elo: 200
`)
	if _, err := LoadPresets(path); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := GetPreset("fine"); err == nil {
		t.Fatalf("valid entry registered from a rejected file")
	}
	if _, err := LoadPresets(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
