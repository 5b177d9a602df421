package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleEvents streams broadcast hub messages as server-sent events. The
// stream carries whatever the hub emits (alert_created, incident_created);
// a slow consumer misses messages rather than blocking producers.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if a.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, ch := a.hub.Subscribe()
	defer a.hub.Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(msg.Payload)
			if err != nil {
				a.logger.Error(r.Context(), err, "failed to encode event payload", "event", msg.Event)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, payload)
			flusher.Flush()
		}
	}
}
