package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syaihu/Thunderirc-Radio/telemetry"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second
)

// ErrNotConnected is returned by Publish while no stream connection is open.
var ErrNotConnected = errors.New("events: not connected")

// inbound types the web application is known to push; anything else is counted as "other"
var knownInbound = map[string]bool{
	"chat_message":  true,
	"radio_state":   true,
	"queue_update":  true,
	"comments":      true,
	"track_request": true,
}

// Publisher owns the outbound websocket to the web application. Its lifecycle
// is independent of the IRC session: it is connected when a dial succeeded
// and neither a read nor a write has failed since.
type Publisher struct {
	url          string
	dialer       *websocket.Dialer
	log          *slog.Logger
	writeTimeout time.Duration

	mu        sync.Mutex // guards conn and serialises writes
	conn      *websocket.Conn
	connected atomic.Bool
}

// NewPublisher returns a disconnected Publisher for url.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		url:          url,
		dialer:       &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		log:          logger.With(slog.String("component", "events")),
		writeTimeout: defaultWriteTimeout,
	}
}

// Connected reports whether the stream is open and not marked closed.
func (p *Publisher) Connected() bool { return p.connected.Load() }

// Connect dials the stream, replacing any previous connection, and starts a
// read pump that drains pushed frames and notices remote closes.
func (p *Publisher) Connect(ctx context.Context) error {
	conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.url, err)
	}

	p.mu.Lock()
	old := p.conn
	p.conn = conn
	p.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	p.connected.Store(true)
	telemetry.SetEventsConnected(true)
	p.log.Info("connected to event stream", slog.String("url", p.url))

	go p.readPump(conn)
	return nil
}

func (p *Publisher) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			p.drop(conn, err)
			return
		}
		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			p.log.Debug("ignoring undecodable frame", slog.Any("err", err))
			telemetry.ObserveReceived("")
			continue
		}
		label := in.Type
		if !knownInbound[label] {
			label = "other"
		}
		telemetry.ObserveReceived(label)
		p.log.Debug("event stream frame", slog.String("type", in.Type))
	}
}

// Publish validates e and writes it as one JSON text frame. Nothing is
// retried; on failure the connection is marked closed and the health check
// reconnects it.
func (p *Publisher) Publish(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		p.log.Error("refusing to publish invalid event", slog.Any("err", err))
		telemetry.ObservePublish(string(e.Type), err)
		return err
	}

	p.mu.Lock()
	conn := p.conn
	if conn == nil || !p.connected.Load() {
		p.mu.Unlock()
		p.log.Warn("event stream not connected; event undelivered", slog.String("type", string(e.Type)))
		telemetry.ObservePublish(string(e.Type), ErrNotConnected)
		return ErrNotConnected
	}
	deadline := time.Now().Add(p.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	err := conn.SetWriteDeadline(deadline)
	if err == nil {
		err = conn.WriteJSON(e)
	}
	p.mu.Unlock()

	telemetry.ObservePublish(string(e.Type), err)
	if err != nil {
		p.log.Error("failed to publish event", slog.String("type", string(e.Type)), slog.Any("err", err))
		p.drop(conn, err)
		return err
	}
	p.log.Debug("published event", slog.String("type", string(e.Type)))
	return nil
}

// Close sends a close frame and closes the connection. Errors are swallowed.
func (p *Publisher) Close() {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "relay shutting down")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			p.log.Debug("close frame", slog.Any("err", err))
		}
	}
	p.mu.Unlock()
	p.connected.Store(false)
	telemetry.SetEventsConnected(false)
	if conn != nil {
		_ = conn.Close()
	}
}

// drop closes conn and, if it is still current, marks the publisher disconnected.
func (p *Publisher) drop(conn *websocket.Conn, reason error) {
	p.mu.Lock()
	current := p.conn == conn
	if current {
		p.conn = nil
	}
	p.mu.Unlock()
	_ = conn.Close()
	if current && p.connected.Swap(false) {
		telemetry.SetEventsConnected(false)
		p.log.Warn("event stream connection lost", slog.Any("err", reason))
	}
}
