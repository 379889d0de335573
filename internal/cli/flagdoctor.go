package cli

import (
	"fmt"

	"github.com/vburojevic/rounds/internal/domain"
)

// validateFlags centralizes the session flag combinations every session command shares.
func validateFlags(globals *Globals, f *SessionFlags) error {
	if f.VoiceCmd != "" && f.VoiceFile != "" {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--voice-cmd and --voice-file cannot be combined", "pick one voice source")
	}
	switch domain.Scale(f.Scale) {
	case "", domain.ScaleNumeric, domain.ScaleCategorical:
	default:
		return outputErrorCommon(globals, "INVALID_FLAGS", fmt.Sprintf("unknown intensity scale %q", f.Scale), "use --scale numeric or --scale categorical")
	}
	// -1 is the unset rest sentinel
	if f.Rounds < 0 || f.RoundSeconds < 0 || f.RestSeconds < -1 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "round count and durations cannot be negative")
	}
	if f.Fresh && f.SessionID != "" {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--fresh ignores saved sessions, so --session-id would never resume", "drop --fresh to resume that session")
	}
	return nil
}
