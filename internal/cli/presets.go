package cli

import (
	"strconv"

	"github.com/vburojevic/rounds/internal/output"
	"github.com/vburojevic/rounds/internal/preset"
)

// PresetsCmd lists built-in and user presets
type PresetsCmd struct {
	File string `help:"YAML or plist preset file (defaults to defaults.preset_file)"`
}

// PresetOutput is one NDJSON preset line.
type PresetOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	preset.Preset
}

// Run executes the presets command
func (c *PresetsCmd) Run(globals *Globals) error {
	var user []preset.Preset
	if path := firstNonEmpty(c.File, globals.Config.Defaults.PresetFile); path != "" {
		loaded, err := preset.LoadFile(path)
		if err != nil {
			return outputErrorCommon(globals, "INVALID_PRESET_FILE", err.Error(), "presets files are .yaml, .yml or .plist with a top-level presets list")
		}
		user = loaded
	}
	catalog := preset.Catalog(user...)

	if globals.Format == "ndjson" {
		w := output.NewNDJSONWriter(globals.Stdout)
		for _, p := range catalog {
			if err := w.WriteJSON(PresetOutput{Type: "preset", SchemaVersion: output.SchemaVersion, Preset: p}); err != nil {
				return err
			}
		}
		return nil
	}

	table := output.Table(globals.Stdout, []string{"Name", "Rounds", "Round", "Rest", "Scale", "Description"})
	for _, p := range catalog {
		row := []string{
			p.Name,
			strconv.Itoa(p.Rounds),
			output.Clock(p.RoundSeconds),
			output.Clock(p.RestSeconds),
			string(p.Scale),
			p.Description,
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
