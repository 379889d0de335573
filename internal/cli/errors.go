package cli

import (
	"errors"

	"github.com/vburojevic/rounds/internal/finalize"
	"github.com/vburojevic/rounds/internal/output"
	"github.com/vburojevic/rounds/internal/session"
)

// outputErrorCommon reports a coded failure once, as an NDJSON error line or a text line
// on stderr, and returns an error so the process exits non-zero.
func outputErrorCommon(globals *Globals, code, message string, hint ...string) error {
	if globals != nil {
		if globals.Format == "ndjson" {
			_ = output.NewNDJSONWriter(globals.Stdout).WriteError(code, message, hint...)
		} else {
			_ = output.NewTextWriter(globals.Stdout, globals.Stderr).WriteError(code, message, hint...)
		}
	}
	return errors.New(message)
}

// finalizeError maps a finalization failure to an actionable coded error.
func finalizeError(globals *Globals, err error) error {
	switch {
	case errors.Is(err, finalize.ErrIdentity):
		return outputErrorCommon(globals, "NOT_SIGNED_IN", err.Error(), "sign in and run again; the finished session is kept until it is saved")
	case errors.Is(err, finalize.ErrRecordWrite):
		return outputErrorCommon(globals, "RECORD_WRITE_FAILED", err.Error(), "run again to retry saving; the finished session is kept")
	case errors.Is(err, finalize.ErrAlreadyFinalized):
		return outputErrorCommon(globals, "ALREADY_FINALIZED", err.Error())
	case errors.Is(err, finalize.ErrNotFinished):
		return outputErrorCommon(globals, "NOT_FINISHED", err.Error(), "end the session before saving it")
	case errors.Is(err, session.ErrNoFinalizer):
		return outputErrorCommon(globals, "RECORDS_UNAVAILABLE", err.Error(), "configure records.driver")
	default:
		return outputErrorCommon(globals, "FINALIZE_FAILED", err.Error())
	}
}
