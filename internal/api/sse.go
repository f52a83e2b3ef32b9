package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// SSE event names. A client gets one "counters" event per published state;
// "shutdown" tells it the daemon is going away and it should not reconnect
// until the service is back.
const (
	eventCounters = "counters"
	eventShutdown = "shutdown"
)

// sseEvents streams the counter set as Server-Sent Events. The first event is
// the current state; each later one carries the bus sequence number as its
// id, so a gap in ids means the client missed an update and holds a stale
// view until the next one.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	id := uuid.New().String()
	ch := h.events.Subscribe(id)
	defer h.events.Unsubscribe(id)

	seq := h.events.Seq()
	sendSSE(w, flusher, eventCounters, seq, views(h.ctrl.CurrentCounts()))

	for {
		select {
		case u, ok := <-ch:
			if !ok {
				sendSSE(w, flusher, eventShutdown, seq, struct{}{})
				return
			}
			if u.Seq <= seq {
				continue // already covered by the initial state
			}
			seq = u.Seq
			sendSSE(w, flusher, eventCounters, seq, views(u.Counters))
		case <-r.Context().Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, event string, id uint64, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", event, id, data)
	flusher.Flush()
}
