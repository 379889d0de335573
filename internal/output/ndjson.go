package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/vburojevic/rounds/internal/domain"
)

// SchemaVersion is the version stamped on every NDJSON line.
const SchemaVersion = domain.SchemaVersion

// Writer renders engine output in one format.
type Writer interface {
	WriteState(ev *domain.StateEvent) error
	WriteCue(ev *domain.CueEvent) error
	WriteNotice(n *domain.Notice) error
	WriteRecord(rec *domain.FinishedSession) error
	WriteError(code, message string, hint ...string) error
}

// ErrorOutput is the coded failure line.
type ErrorOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// NDJSONWriter writes one JSON document per line. Safe for concurrent use.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONWriter creates a writer over w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{enc: json.NewEncoder(w)}
}

func (w *NDJSONWriter) encode(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// WriteState writes a state line.
func (w *NDJSONWriter) WriteState(ev *domain.StateEvent) error { return w.encode(ev) }

// WriteCue writes a cue line.
func (w *NDJSONWriter) WriteCue(ev *domain.CueEvent) error { return w.encode(ev) }

// WriteNotice writes a notice line.
func (w *NDJSONWriter) WriteNotice(n *domain.Notice) error { return w.encode(n) }

// WriteRecord writes the finished-session record.
func (w *NDJSONWriter) WriteRecord(rec *domain.FinishedSession) error {
	out := *rec
	out.Type = "record"
	out.SchemaVersion = SchemaVersion
	return w.encode(&out)
}

// WriteError writes a coded error. Only the first hint is kept.
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	out := ErrorOutput{
		Type:          "error",
		SchemaVersion: SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		out.Hint = hint[0]
	}
	return w.encode(&out)
}

// WriteJSON writes an arbitrary document, for command-specific outputs.
func (w *NDJSONWriter) WriteJSON(v any) error { return w.encode(v) }
