package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codename-co/runbox/internal/runner"
)

// ProgressSource is the subscription surface of the runner manager.
type ProgressSource interface {
	Subscribe(fn func(runner.Event)) func()
}

// EventsHandler streams execution progress events over Server-Sent Events.
// Clients correlate events with their own requests via the requestId field.
type EventsHandler struct {
	source ProgressSource
	logger *slog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(source ProgressSource, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		source: source,
		logger: logger,
	}
}

// HandleEvents serves GET /api/events. The connection stays open until the
// client disconnects. Events are advisory; a slow client gets events
// dropped rather than stalling execution.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// The stream outlives the server's write timeout; lift the deadline
	// for this connection only. Not every ResponseWriter supports it
	// (test recorders do not), so the error is ignored.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The subscription callback runs on the execution path, so it must
	// never block: a full buffer drops the event.
	events := make(chan runner.Event, 64)
	unsubscribe := h.source.Subscribe(func(ev runner.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
