package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// EventSink is a websocket endpoint standing in for the web application. It
// records every JSON frame a client sends and can push frames back.
type EventSink struct {
	*httptest.Server
	t        *testing.T
	upgrader websocket.Upgrader
	frames   chan map[string]any

	mu    sync.Mutex
	conns []*websocket.Conn
}

// NewEventSink starts the sink and registers cleanup with t.
func NewEventSink(t *testing.T) *EventSink {
	t.Helper()
	s := &EventSink{
		t:        t,
		upgrader: websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }},
		frames:   make(chan map[string]any, 64),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	t.Cleanup(s.DropClients)
	return s
}

func (s *EventSink) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
	for {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		s.frames <- frame
	}
}

// URL returns the ws:// address of the sink.
func (s *EventSink) URL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

// Expect returns the next frame a client sent.
func (s *EventSink) Expect(timeout time.Duration) map[string]any {
	s.t.Helper()
	select {
	case f := <-s.frames:
		return f
	case <-time.After(timeout):
		s.t.Fatalf("timed out waiting for event frame")
		return nil
	}
}

// ExpectNone fails the test if a frame arrives within d.
func (s *EventSink) ExpectNone(d time.Duration) {
	s.t.Helper()
	select {
	case f := <-s.frames:
		s.t.Fatalf("unexpected event frame %v", f)
	case <-time.After(d):
	}
}

// Push sends v as JSON to every connected client.
func (s *EventSink) Push(v any) {
	s.t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		s.t.Fatalf("marshal push: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

// DropClients closes every client connection from the server side.
func (s *EventSink) DropClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

// Clients returns how many connections were upgraded so far and are still tracked.
func (s *EventSink) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
