// Package preset provides named session setups: built-in combat formats plus user files in
// YAML or Apple plist form.
package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
	"howett.net/plist"

	"github.com/vburojevic/rounds/internal/domain"
)

var (
	ErrUnknownPreset = errors.New("unknown preset")
	ErrUnknownFormat = errors.New("unsupported preset file format")
)

// Preset is a reusable session configuration.
type Preset struct {
	Name         string       `yaml:"name" plist:"name" json:"name"`
	Description  string       `yaml:"description,omitempty" plist:"description,omitempty" json:"description,omitempty"`
	Rounds       int          `yaml:"rounds" plist:"rounds" json:"rounds"`
	RoundSeconds int          `yaml:"round_seconds" plist:"round_seconds" json:"round_seconds"`
	RestSeconds  int          `yaml:"rest_seconds" plist:"rest_seconds" json:"rest_seconds"`
	Scale        domain.Scale `yaml:"scale" plist:"scale" json:"scale"`
	Focus        []string     `yaml:"focus,omitempty" plist:"focus,omitempty" json:"focus,omitempty"` // one label per round, in order
}

// Config converts the preset into a validated session configuration.
func (p Preset) Config() (domain.SessionConfig, error) {
	scale := p.Scale
	if scale == "" {
		scale = domain.ScaleNumeric
	}
	cfg := domain.SessionConfig{
		RoundCount:           p.Rounds,
		RoundDurationSeconds: p.RoundSeconds,
		RestDurationSeconds:  p.RestSeconds,
		Scale:                scale,
	}
	if len(p.Focus) > p.Rounds {
		return domain.SessionConfig{}, fmt.Errorf("%w: preset %q has %d focus labels for %d rounds",
			domain.ErrInvalidConfig, p.Name, len(p.Focus), p.Rounds)
	}
	for i, label := range p.Focus {
		if label = strings.TrimSpace(label); label != "" {
			if cfg.RoundFocusLabels == nil {
				cfg.RoundFocusLabels = make(map[int]string)
			}
			cfg.RoundFocusLabels[i] = label
		}
	}
	if err := cfg.Validate(); err != nil {
		return domain.SessionConfig{}, fmt.Errorf("preset %q: %w", p.Name, err)
	}
	return cfg, nil
}

var builtins = []Preset{
	{
		Name: "boxing", Description: "Amateur boxing: 3 x 3 min, 1 min rest",
		Rounds: 3, RoundSeconds: 180, RestSeconds: 60, Scale: domain.ScaleNumeric,
		Focus: []string{"jab and footwork", "body shots", "combinations"},
	},
	{
		Name: "muay-thai", Description: "Muay Thai: 5 x 3 min, 2 min rest",
		Rounds: 5, RoundSeconds: 180, RestSeconds: 120, Scale: domain.ScaleNumeric,
	},
	{
		Name: "mma", Description: "MMA: 3 x 5 min, 1 min rest",
		Rounds: 3, RoundSeconds: 300, RestSeconds: 60, Scale: domain.ScaleCategorical,
		Focus: []string{"striking", "wrestling", "ground and pound"},
	},
	{
		Name: "hiit", Description: "Tabata-style HIIT: 8 x 20 s, 10 s rest",
		Rounds: 8, RoundSeconds: 20, RestSeconds: 10, Scale: domain.ScaleCategorical,
	},
}

// Builtins returns the built-in presets.
func Builtins() []Preset {
	return lo.Map(builtins, func(p Preset, _ int) Preset {
		p.Focus = append([]string(nil), p.Focus...)
		return p
	})
}

// Catalog merges built-ins with user presets; user presets override by name.
func Catalog(user ...Preset) []Preset {
	byName := lo.SliceToMap(Builtins(), func(p Preset) (string, Preset) { return p.Name, p })
	for _, p := range user {
		byName[p.Name] = p
	}
	out := lo.Values(byName)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds name in the catalog.
func Lookup(name string, user ...Preset) (Preset, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	p, ok := lo.Find(Catalog(user...), func(p Preset) bool { return strings.ToLower(p.Name) == name })
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

type presetFile struct {
	Presets []Preset `yaml:"presets" plist:"presets"`
}

// LoadFile reads presets from a .yaml/.yml or .plist file.
func LoadFile(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset file: %w", err)
	}

	var file presetFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse preset yaml: %w", err)
		}
	case ".plist":
		if _, err := plist.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse preset plist: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	for i, p := range file.Presets {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("preset #%d in %s has no name", i+1, path)
		}
		if _, err := p.Config(); err != nil {
			return nil, err
		}
	}
	return file.Presets, nil
}
