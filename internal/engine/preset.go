package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/Cheese-Xiangqi/internal/engine/ucci"
)

// StrengthPreset is a named set of search limits. Elo 0 means the engine
// plays at full strength.
type StrengthPreset struct {
	Name           string
	DepthCap       int
	MoveTimeMillis int
	Elo            int
}

const (
	minElo = 1000
	maxElo = 3000
)

var presetMu sync.RWMutex

var DefaultPresets = map[string]StrengthPreset{
	"casual": {
		Name:           "casual",
		DepthCap:       4,
		MoveTimeMillis: 300,
		Elo:            1200,
	},
	"club": {
		Name:           "club",
		DepthCap:       7,
		MoveTimeMillis: 1000,
		Elo:            1900,
	},
	"master": {
		Name:           "master",
		DepthCap:       10,
		MoveTimeMillis: 2000,
		Elo:            3000,
	},
	"unlimited": {
		Name:           "unlimited",
		DepthCap:       20,
		MoveTimeMillis: 5000,
	},
}

const DefaultPresetName = "master"

func GetPreset(name string) (StrengthPreset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "default":
		key = DefaultPresetName
	case "beginner", "easy":
		key = "casual"
	case "full", "max":
		key = "unlimited"
	}
	presetMu.RLock()
	p, ok := DefaultPresets[key]
	presetMu.RUnlock()
	if !ok {
		return StrengthPreset{}, fmt.Errorf("unknown engine preset: %s", name)
	}
	return p, nil
}

// PresetNames lists the registered presets in sorted order.
func PresetNames() []string {
	presetMu.RLock()
	defer presetMu.RUnlock()
	out := make([]string, 0, len(DefaultPresets))
	for k := range DefaultPresets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SetPreset registers or replaces a preset after validating it.
func SetPreset(p StrengthPreset) error {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	if p.Name == "" {
		return fmt.Errorf("preset name required")
	}
	if err := ValidatePreset(p); err != nil {
		return err
	}
	presetMu.Lock()
	DefaultPresets[p.Name] = p
	presetMu.Unlock()
	return nil
}

func ValidatePreset(p StrengthPreset) error {
	switch {
	case p.DepthCap < 0:
		return fmt.Errorf("depth cap must be >= 0: %d", p.DepthCap)
	case p.MoveTimeMillis < 0:
		return fmt.Errorf("move time must be >= 0: %d", p.MoveTimeMillis)
	case p.Elo < 0:
		return fmt.Errorf("elo must be >= 0: %d", p.Elo)
	case p.Elo > 0 && (p.Elo < minElo || p.Elo > maxElo):
		return fmt.Errorf("elo %d out of range %d-%d", p.Elo, minElo, maxElo)
	case p.DepthCap == 0 && p.MoveTimeMillis == 0:
		return fmt.Errorf("preset %s does not define search limits", p.Name)
	}
	return nil
}

// Request builds the engine request for a move history in square notation.
func (p StrengthPreset) Request(moves string) ucci.MoveRequest {
	return ucci.MoveRequest{
		Moves:    moves,
		Depth:    p.DepthCap,
		MoveTime: time.Duration(p.MoveTimeMillis) * time.Millisecond,
		Elo:      p.Elo,
	}
}
