package cli

import (
	"encoding/json"
	"strings"

	"github.com/vburojevic/rounds/internal/domain"
)

var schemaTypes = []string{"state", "cue", "notice", "record", "error"}

// SchemaCmd outputs JSON Schema for rounds output types
type SchemaCmd struct {
	Type []string `short:"t" help:"Output types to include (state,cue,notice,record,error). Default: all"`
}

// Run executes the schema command
func (c *SchemaCmd) Run(globals *Globals) error {
	schemas := map[string]map[string]any{
		"state":  stateSchema(),
		"cue":    cueSchema(),
		"notice": noticeSchema(),
		"record": recordSchema(),
		"error":  errorSchema(),
	}

	typesToOutput := c.Type
	if len(typesToOutput) == 0 {
		typesToOutput = schemaTypes
	}

	defs := map[string]any{}
	for _, t := range typesToOutput {
		t = strings.ToLower(strings.TrimSpace(t))
		if schema, ok := schemas[t]; ok {
			defs[t] = schema
		}
	}
	out := map[string]any{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "rounds output schemas",
		"description": "JSON Schema definitions for rounds NDJSON output types",
		"definitions": defs,
	}

	encoder := json.NewEncoder(globals.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func constType(name string) map[string]any {
	return map[string]any{"type": "string", "const": name}
}

func timestamp() map[string]any {
	return map[string]any{"type": "string", "format": "date-time", "description": "RFC3339 UTC timestamp"}
}

func stateSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "State",
		"description": "Session state after an accepted command or a tick",
		"properties": map[string]any{
			"type":          constType("state"),
			"schemaVersion": prop("integer", "Output schema version"),
			"session_id":    prop("string", "Session id"),
			"reason":        prop("string", "Command name, or tick, intensity, init, restore, subscribe"),
			"phase": map[string]any{
				"type": "string",
				"enum": []domain.Phase{
					domain.PhaseIdle, domain.PhaseWorking, domain.PhaseResting,
					domain.PhaseAwaitingIntensity, domain.PhaseFinished,
				},
			},
			"round":         prop("integer", "Current round, 1-indexed; 0 while idle"),
			"round_count":   prop("integer", "Configured number of rounds"),
			"remaining":     prop("integer", "Seconds left in the current phase"),
			"running":       prop("boolean", "False while paused"),
			"voice_enabled": prop("boolean", "Whether recognized voice commands are forwarded"),
			"focus":         prop("string", "Focus label for the current round"),
			"timestamp":     timestamp(),
		},
		"required": []string{"type", "session_id", "reason", "phase", "round", "round_count", "remaining", "running", "voice_enabled", "timestamp"},
	}
}

func cueSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Cue",
		"description": "Audio cue fired by a transition",
		"properties": map[string]any{
			"type":          constType("cue"),
			"schemaVersion": prop("integer", "Output schema version"),
			"session_id":    prop("string", "Session id"),
			"cue": map[string]any{
				"type": "string",
				"enum": []string{"round_start", "round_end", "countdown", "session_end"},
			},
			"round":     prop("integer", "Round the cue belongs to"),
			"countdown": prop("integer", "Seconds left, for countdown cues"),
			"phrase":    prop("string", "Spoken phrase"),
			"timestamp": timestamp(),
		},
		"required": []string{"type", "session_id", "cue", "round", "timestamp"},
	}
}

func noticeSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Notice",
		"description": "Non-blocking message such as voice disabled or a failed save",
		"properties": map[string]any{
			"type":          constType("notice"),
			"schemaVersion": prop("integer", "Output schema version"),
			"session_id":    prop("string", "Session id"),
			"code":          prop("string", "voice_disabled, save_failed, interrupted, abandoned, nothing_to_record, photo_skipped"),
			"message":       prop("string", "Human-readable message"),
			"timestamp":     timestamp(),
		},
		"required": []string{"type", "code", "message", "timestamp"},
	}
}

func recordSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Finished session",
		"description": "The record written once a session finishes",
		"properties": map[string]any{
			"type":             constType("record"),
			"schemaVersion":    prop("integer", "Output schema version"),
			"id":               prop("string", "Record id (ULID derived from the session)"),
			"session_id":       prop("string", "Session id"),
			"user_id":          prop("string", "User the session is attributed to"),
			"status":           constType(domain.StatusFinished),
			"started_at":       timestamp(),
			"finished_at":      timestamp(),
			"duration_minutes": prop("integer", "Elapsed wall time rounded to minutes"),
			"round_count":      prop("integer", "Configured number of rounds"),
			"rounds_completed": prop("integer", "Rounds fully worked"),
			"intensity_by_round": map[string]any{
				"type":        "object",
				"description": "Intensity per round index",
			},
			"average_intensity": prop("number", "Mean of the recorded intensities"),
			"proof_photo_url":   prop("string", "Uploaded proof photo, when provided"),
		},
		"required": []string{"type", "id", "session_id", "user_id", "status", "started_at", "finished_at", "duration_minutes", "round_count", "rounds_completed"},
	}
}

func errorSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Error",
		"description": "Error message from rounds",
		"properties": map[string]any{
			"type":          constType("error"),
			"schemaVersion": prop("integer", "Output schema version"),
			"code": map[string]any{
				"type":        "string",
				"description": "Error code",
				"enum": []string{
					"INVALID_FLAGS",
					"INVALID_SESSION",
					"INVALID_SCORE",
					"INVALID_PRESET_FILE",
					"UNKNOWN_COMMAND",
					"PERSISTENCE_UNAVAILABLE",
					"RECORDS_UNAVAILABLE",
					"BACKEND_UNAVAILABLE",
					"VOICE_UNAVAILABLE",
					"TMUX_UNAVAILABLE",
					"SESSION_OPEN_FAILED",
					"SESSION_FAILED",
					"NOT_SIGNED_IN",
					"RECORD_WRITE_FAILED",
					"ALREADY_FINALIZED",
					"NOT_FINISHED",
					"FINALIZE_FAILED",
					"QUERY_FAILED",
					"SERVE_FAILED",
					"UI_FAILED",
					"UNSUPPORTED",
					"ABANDONED",
					"BAD_REQUEST",
					"INTERNAL",
					"NOTHING_TO_RECORD",
					"NOT_A_COMMAND",
					"NO_RECORD_STORE",
					"SESSION_CLOSED",
					"TIMEOUT",
					"VOICE_OFF",
				},
			},
			"message": prop("string", "Human-readable error description"),
			"hint":    prop("string", "What to do about it"),
		},
		"required": []string{"type", "code", "message"},
	}
}
