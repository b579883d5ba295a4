package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedMessages(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := c.Render("result.capture", map[string]any{"Side": "red", "Captured": "black cannon", "Move": "b7b0"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(got, "吃") || !strings.Contains(got, "black cannon") {
		t.Fatalf("capture message = %q", got)
	}
	for _, k := range []string{"result.checkmate", "result.stalemate", "outcome.win", "outcome.loss", "engine.error"} {
		found := false
		for _, have := range c.Keys() {
			if have == k {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing key %s", k)
		}
	}
}

func TestRenderMissingData(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Render("result.checkmate", map[string]any{}); err == nil {
		t.Fatalf("expected error for missing template field")
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if got := c.RenderOr("no.such.key", nil, "fallback"); got != "fallback" {
		t.Fatalf("RenderOr = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("outcome:\n  win: \"Victory for {{.Side}}\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := c.Render("outcome.win", map[string]any{"Side": "red"})
	if err != nil || got != "Victory for red" {
		t.Fatalf("override = %q, %v", got, err)
	}
	if _, err := c.Render("outcome.loss", nil); err != nil {
		t.Fatalf("embedded key lost: %v", err)
	}
}

func TestOverrideDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	body := []byte("game:\n  over: \"done\"\n")
	for _, n := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, n), body, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestRejectsNonStringLeaf(t *testing.T) {
	if _, err := parseYAMLToFlat([]byte("game:\n  count: 3\n")); err == nil {
		t.Fatalf("expected error for integer leaf")
	}
}
