package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/codename-co/runbox/internal/handler"
	"github.com/codename-co/runbox/internal/runner"
)

// mockProgressSource hands the subscription callback back to the test so
// it can publish events directly.
type mockProgressSource struct {
	mu           sync.Mutex
	fn           func(runner.Event)
	unsubscribed bool
}

func (m *mockProgressSource) Subscribe(fn func(runner.Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.unsubscribed = true
	}
}

func (m *mockProgressSource) publish(ev runner.Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fn == nil {
		return false
	}
	m.fn(ev)
	return true
}

func (m *mockProgressSource) wasUnsubscribed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsubscribed
}

// deadlineRecorder is a ResponseRecorder that also records write deadline
// changes, the way a real server connection would accept them.
type deadlineRecorder struct {
	*httptest.ResponseRecorder
	mu        sync.Mutex
	deadlines []time.Time
}

func (r *deadlineRecorder) SetWriteDeadline(t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadlines = append(r.deadlines, t)
	return nil
}

func TestEventsHandler_LiftsWriteDeadline(t *testing.T) {
	source := &mockProgressSource{}
	h := handler.NewEventsHandler(source, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rr := &deadlineRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		h.HandleEvents(rr, req)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for !source.publish(runner.Event{RequestID: "r1", Message: "running script"}) {
		select {
		case <-deadline:
			t.Fatal("handler never subscribed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	// The stream must outlive the server's write timeout, so the handler
	// clears the per-connection deadline before streaming.
	rr.mu.Lock()
	defer rr.mu.Unlock()
	assert.Contains(t, rr.deadlines, time.Time{})
}

func TestEventsHandler_StreamsEvents(t *testing.T) {
	source := &mockProgressSource{}
	h := handler.NewEventsHandler(source, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.HandleEvents(rr, req)
		close(done)
	}()

	// Wait for the subscription to be registered, then publish.
	deadline := time.After(2 * time.Second)
	for !source.publish(runner.Event{RequestID: "r1", Message: "running script"}) {
		select {
		case <-deadline:
			t.Fatal("handler never subscribed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Give the handler a moment to flush, then close the stream.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rr.Body.String()
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(body, `data: `), "body: %q", body)
	assert.Contains(t, body, `"requestId":"r1"`)
	assert.Contains(t, body, "running script")
	assert.True(t, source.wasUnsubscribed(), "handler should unsubscribe on disconnect")
}
