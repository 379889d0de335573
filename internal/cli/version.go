package cli

import (
	"fmt"

	"github.com/vburojevic/rounds/internal/output"
)

// VersionCmd shows version information
type VersionCmd struct{}

// VersionOutput is the NDJSON form of version.
type VersionOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
}

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).WriteJSON(VersionOutput{
			Type:          "version",
			SchemaVersion: output.SchemaVersion,
			Version:       Version,
			Commit:        Commit,
		})
	}
	fmt.Fprintf(globals.Stdout, "rounds version %s (%s)\n", Version, Commit)
	return nil
}
