package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/engine"
)

const sseBuffer = 64

// streamEvents sends the current state, then every state, cue and notice event as
// Server-Sent Events until the client leaves or the session loop stops.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, "INTERNAL", "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, unsubscribe := s.sess.Subscribe(sseBuffer)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	initial := domain.NewStateEvent(s.sess.ID(), "subscribe", s.sess.Config(), s.sess.State(), s.clk.Now())
	if err := writeSSE(w, "state", initial); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			name, payload := eventPayload(ev)
			if payload == nil {
				continue
			}
			if err := writeSSE(w, name, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func eventPayload(ev engine.Event) (string, any) {
	switch {
	case ev.State != nil:
		return "state", ev.State
	case ev.Cue != nil:
		return "cue", ev.Cue
	case ev.Notice != nil:
		return "notice", ev.Notice
	}
	return "", nil
}

func writeSSE(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
