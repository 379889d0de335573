package cli

import "go.uber.org/zap"

// sessionLogger scopes the process logger to one command and session.
func sessionLogger(globals *Globals, cmd, sessionID string) *zap.Logger {
	l := globals.Logger().With(zap.String("cmd", cmd))
	if sessionID != "" {
		l = l.With(zap.String("session_id", sessionID))
	}
	return l
}
