package engine

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type presetFile struct {
	Presets []struct {
		Name       string `yaml:"name"`
		Depth      int    `yaml:"depth"`
		MoveTimeMS int    `yaml:"movetime_ms"`
		Elo        int    `yaml:"elo"`
	} `yaml:"presets"`
}

// LoadPresets registers the presets listed in a YAML file, replacing built-in
// presets of the same name. Nothing is registered if any entry is invalid.
//
//	presets:
//	  - name: blitz
//	    depth: 5
//	    movetime_ms: 200
//	    elo: 1500
func LoadPresets(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	var f presetFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse presets %s: %w", path, err)
	}
	parsed := make([]StrengthPreset, 0, len(f.Presets))
	for i, e := range f.Presets {
		p := StrengthPreset{Name: strings.ToLower(strings.TrimSpace(e.Name)), DepthCap: e.Depth, MoveTimeMillis: e.MoveTimeMS, Elo: e.Elo}
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d: name required", i+1)
		}
		if err := ValidatePreset(p); err != nil {
			return nil, fmt.Errorf("preset %s: %w", p.Name, err)
		}
		parsed = append(parsed, p)
	}
	names := make([]string, 0, len(parsed))
	for _, p := range parsed {
		if err := SetPreset(p); err != nil {
			return names, err
		}
		names = append(names, p.Name)
	}
	return names, nil
}
