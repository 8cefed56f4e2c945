package server

import (
	"encoding/json"
	"net/http"

	"github.com/syaihu/Thunderirc-Radio/chat"
)

// StatusReporter reports the relay's connection state.
type StatusReporter interface {
	Status() chat.Status
}

// Handlers serves the status endpoints.
type Handlers struct {
	status StatusReporter
}

type readiness struct {
	Status   string `json:"status"`
	IRC      bool   `json:"irc"`
	Events   bool   `json:"events"`
	Inflight int    `json:"inflight_requests"`
}

// HandleHealthz is the liveness probe: ok while the process is serving.
// Connection state is left to HandleReadyz since the supervisor recovers drops on its own.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz is ready only when both the IRC connection and the event stream are up.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	st := h.status.Status()
	resp := readiness{Status: "ready", IRC: st.IRC, Events: st.Events, Inflight: st.InflightRequests}
	code := http.StatusOK
	if !st.IRC || !st.Events {
		resp.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
