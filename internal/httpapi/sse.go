package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agentcore/runtime/internal/bus"
)

// sdkEvent is the wire shape of every SSE message (spec §6: `{type,
// properties}`), grounded on the teacher's SDKEvent.
type sdkEvent struct {
	Type       bus.EventType `json:"type"`
	Properties any           `json:"properties"`
}

const heartbeatInterval = 30 * time.Second

// streamEvents implements GET /event: one SSE event per bus publication,
// grounded on the teacher's allEvents (internal/server/sse.go), now backed
// by bus.Bridge instead of a directly-subscribed channel so a slow client
// cannot stall a turn's Publish call.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if !writeSSE(w, flusher, sdkEvent{Type: bus.EventServerConnected, Properties: map[string]any{}}) {
		return
	}

	ctx := r.Context()
	events, unsubscribe, err := s.bus.Bridge(ctx)
	if err != nil {
		return
	}
	defer unsubscribe()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				// Bridge closed the connection: either ctx was cancelled or
				// this connection fell behind the event stream (spec §5).
				return
			}
			if !writeSSE(w, flusher, sdkEvent{Type: msg.Type, Properties: msg.Data}) {
				return
			}
		case <-ticker.C:
			// spec §6: server.heartbeat is a typed member of the uniform
			// {type, properties} envelope like every other SSE message, not
			// a bare SSE comment line a JSON.parse-on-data client would
			// never see.
			if !writeSSE(w, flusher, sdkEvent{Type: bus.EventServerHeartbeat, Properties: map[string]any{}}) {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, data any) bool {
	payload, err := json.Marshal(data)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
