package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Events handles GET /api/events as a server-sent event stream. The first
// event is a snapshot of every job; registry changes follow.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, cleanup := h.jobs.Subscribe()
	defer cleanup()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", h.jobs.List()); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev, open := <-events:
			if !open {
				return
			}
			if err := writeEvent(w, string(ev.Type), ev.Job); err != nil {
				h.logger.Debug().Err(err).Msg("event stream closed")
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, name string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, raw)
	return err
}
