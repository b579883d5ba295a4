package engine

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultPresetsValid(t *testing.T) {
	for name, p := range DefaultPresets {
		if err := ValidatePreset(p); err != nil {
			t.Fatalf("preset %s invalid: %v", name, err)
		}
		if p.Name != name {
			t.Fatalf("preset key %s has name %s", name, p.Name)
		}
	}
}

func TestGetPresetAliases(t *testing.T) {
	p, err := GetPreset("")
	if err != nil {
		t.Fatalf("default preset: %v", err)
	}
	if p.Name != "master" || p.DepthCap != 10 || p.MoveTimeMillis != 2000 || p.Elo != 3000 {
		t.Fatalf("default preset = %+v", p)
	}
	if p, _ := GetPreset(" Easy "); p.Name != "casual" {
		t.Fatalf("alias easy -> %q", p.Name)
	}
	if _, err := GetPreset("grandmaster"); err == nil {
		t.Fatalf("expected unknown preset error")
	}
}

func TestValidatePresetRejects(t *testing.T) {
	bad := []StrengthPreset{
		{Name: "a", DepthCap: -1, MoveTimeMillis: 10},
		{Name: "b", MoveTimeMillis: -5, DepthCap: 1},
		{Name: "c", DepthCap: 3, Elo: 500},
		{Name: "d"},
	}
	for _, p := range bad {
		if err := ValidatePreset(p); err == nil {
			t.Fatalf("preset %+v should be rejected", p)
		}
	}
}

func TestSetPreset(t *testing.T) {
	if err := SetPreset(StrengthPreset{Name: " Blitz ", MoveTimeMillis: 100}); err != nil {
		t.Fatalf("set preset: %v", err)
	}
	defer func() {
		presetMu.Lock()
		delete(DefaultPresets, "blitz")
		presetMu.Unlock()
	}()
	p, err := GetPreset("blitz")
	if err != nil || p.MoveTimeMillis != 100 {
		t.Fatalf("blitz = %+v, %v", p, err)
	}
	if err := SetPreset(StrengthPreset{Name: "", DepthCap: 1}); err == nil {
		t.Fatalf("empty name accepted")
	}
}

func TestPresetCommands(t *testing.T) {
	p, _ := GetPreset("master")
	got := p.Request("h2e2").Commands()
	want := []string{
		"setoption name UCI_LimitStrength value true",
		"setoption name UCI_Elo value 3000",
		"position startpos moves h2e2",
		"go depth 10 movetime 2000",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("commands = %v", got)
	}
}

func TestPresetRequest(t *testing.T) {
	p, _ := GetPreset("club")
	req := p.Request("h2e2 h9g7")
	if req.Moves != "h2e2 h9g7" || req.Depth != 7 || req.MoveTime != time.Second || req.Elo != 1900 {
		t.Fatalf("request = %+v", req)
	}
	u, _ := GetPreset("unlimited")
	if got := u.Request("").Commands()[0]; got != "setoption name UCI_LimitStrength value false" {
		t.Fatalf("unlimited strength line = %q", got)
	}
}
