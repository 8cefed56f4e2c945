// Package testutil holds in-process fakes for the relay's three collaborators:
// the IRC server, the web application's event stream and its song lookup API.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// LookupRequest is the body the bot posts to the lookup API.
type LookupRequest struct {
	Username string `json:"username"`
	Query    string `json:"query"`
}

// MockLookupServer creates a test server that mocks the song lookup endpoint.
type MockLookupServer struct {
	*httptest.Server
	Handler http.HandlerFunc

	mu       sync.Mutex
	requests []LookupRequest
	headers  []http.Header
}

// NewMockLookupServer creates a new mock lookup API server. Until a response is
// configured every request answers {"success":false}.
func NewMockLookupServer(t *testing.T) *MockLookupServer {
	t.Helper()
	m := &MockLookupServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body LookupRequest
		_ = json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck // recorded as-is
		m.mu.Lock()
		m.requests = append(m.requests, body)
		m.headers = append(m.headers, r.Header.Clone())
		h := m.Handler
		m.mu.Unlock()
		if h != nil {
			h(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "No tracks found"})
	}))
	t.Cleanup(m.Close)
	return m
}

// MockTrackFound answers every request with a matched track.
func (m *MockLookupServer) MockTrackFound(title, artist string) {
	m.set(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"track":   map[string]string{"title": title, "artist": artist},
		})
	})
}

// MockNoMatch answers every request with success=false.
func (m *MockLookupServer) MockNoMatch() {
	m.set(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "No tracks found"})
	})
}

// MockStatus answers every request with the given status and a JSON error body.
func (m *MockLookupServer) MockStatus(status int) {
	m.set(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, map[string]string{"error": "Failed to process request"})
	})
}

// MockRaw answers every request with a raw body.
func (m *MockLookupServer) MockRaw(status int, body string) {
	m.set(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (m *MockLookupServer) set(h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handler = h
}

// Requests returns a copy of the decoded request bodies received so far.
func (m *MockLookupServer) Requests() []LookupRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LookupRequest(nil), m.requests...)
}

// Headers returns the request headers received so far.
func (m *MockLookupServer) Headers() []http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]http.Header(nil), m.headers...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}
