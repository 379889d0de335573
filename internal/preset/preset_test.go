package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/rounds/internal/domain"
)

func TestBuiltinsAreValid(t *testing.T) {
	for _, p := range Builtins() {
		cfg, err := p.Config()
		require.NoError(t, err, p.Name)
		assert.Equal(t, p.Rounds, cfg.RoundCount)
	}
}

func TestBoxingPreset(t *testing.T) {
	p, err := Lookup(" Boxing ")
	require.NoError(t, err)
	cfg, err := p.Config()
	require.NoError(t, err)
	assert.Equal(t, domain.SessionConfig{
		RoundCount:           3,
		RoundDurationSeconds: 180,
		RestDurationSeconds:  60,
		Scale:                domain.ScaleNumeric,
		RoundFocusLabels:     map[int]string{0: "jab and footwork", 1: "body shots", 2: "combinations"},
	}, cfg)
	assert.Equal(t, "body shots", cfg.FocusLabel(2))
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("kickboxing")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestCatalogUserOverrides(t *testing.T) {
	cat := Catalog(Preset{Name: "boxing", Rounds: 12, RoundSeconds: 180, RestSeconds: 60})
	p, err := Lookup("boxing", cat...)
	require.NoError(t, err)
	assert.Equal(t, 12, p.Rounds)
	assert.Len(t, cat, len(Builtins()))
	assert.Equal(t, "boxing", cat[0].Name)
}

func TestConfigRejectsTooManyFocusLabels(t *testing.T) {
	_, err := Preset{Name: "x", Rounds: 1, RoundSeconds: 60, Focus: []string{"a", "b"}}.Config()
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
presets:
  - name: sparring
    rounds: 6
    round_seconds: 120
    rest_seconds: 45
    scale: categorical
    focus: [defense, "", counters]
`), 0o644))

	got, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	cfg, err := got[0].Config()
	require.NoError(t, err)
	assert.Equal(t, domain.ScaleCategorical, cfg.Scale)
	assert.Equal(t, map[int]string{0: "defense", 2: "counters"}, cfg.RoundFocusLabels)
}

func TestLoadPlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.plist")
	require.NoError(t, os.WriteFile(path, []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>presets</key>
	<array>
		<dict>
			<key>name</key><string>kettlebell</string>
			<key>rounds</key><integer>4</integer>
			<key>round_seconds</key><integer>60</integer>
			<key>rest_seconds</key><integer>30</integer>
			<key>scale</key><string>numeric</string>
		</dict>
	</array>
</dict>
</plist>`), 0o644))

	got, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Preset{Name: "kettlebell", Rounds: 4, RoundSeconds: 60, RestSeconds: 30, Scale: domain.ScaleNumeric}, got[0])
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("presets:\n  - name: broken\n    rounds: 0\n    round_seconds: 10\n"), 0o644))
	_, err := LoadFile(bad)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	txt := filepath.Join(dir, "presets.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err = LoadFile(txt)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
