package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/syaihu/Thunderirc-Radio/events"
	"github.com/syaihu/Thunderirc-Radio/irc"
)

// IRC is the part of the IRC session the dispatcher drives.
type IRC interface {
	Nick() string
	Pong(token string) error
	JoinAll()
}

// EventSink receives chat events for the web application.
type EventSink interface {
	Publish(ctx context.Context, e events.Event) error
}

// RequestFunc is called for every request command with a non-empty query. It
// must not block; the relay hands the work to its task set.
type RequestFunc func(actor, query, replyTo string)

// Dispatcher routes parsed messages: keep-alive, registration, joins and channel text.
type Dispatcher struct {
	irc       IRC
	sink      EventSink
	onRequest RequestFunc
	prefix    string
	log       *slog.Logger
	now       func() time.Time
}

// NewDispatcher returns a Dispatcher that treats text starting with
// requestCommand followed by a space as a song request.
func NewDispatcher(session IRC, sink EventSink, requestCommand string, onRequest RequestFunc, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		irc:       session,
		sink:      sink,
		onRequest: onRequest,
		prefix:    strings.TrimSpace(requestCommand) + " ",
		log:       logger.With(slog.String("component", "dispatcher")),
		now:       time.Now,
	}
}

// Dispatch handles one message. Unrecognised commands are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *irc.Message) {
	switch msg.Command {
	case irc.CmdPing:
		if len(msg.Params) == 0 {
			d.log.Warn("PING without token", slog.String("raw", msg.Raw))
			return
		}
		_ = d.irc.Pong(msg.Token())
	case irc.RplWelcome:
		d.log.Info("registered with irc server")
		d.irc.JoinAll()
	case irc.CmdJoin:
		if msg.Actor != "" && msg.Actor == d.irc.Nick() {
			d.log.Info("joined channel", slog.String("channel", msg.Token()))
		}
	case irc.CmdPrivmsg:
		d.privmsg(ctx, msg)
	}
}

func (d *Dispatcher) privmsg(ctx context.Context, msg *irc.Message) {
	if len(msg.Params) < 2 {
		return
	}
	if msg.Actor == "" {
		d.log.Debug("PRIVMSG without a user origin", slog.String("raw", msg.Raw))
		return
	}
	target := msg.Param(0)
	text := msg.Text(1)
	d.log.Info("chat", slog.String("user", msg.Actor), slog.String("target", target), slog.String("message", text))

	// delivery failures are logged by the publisher
	_ = d.sink.Publish(ctx, events.NewChatMessage(msg.Actor, text, d.now(), false))

	if !strings.HasPrefix(text, d.prefix) {
		return
	}
	query := strings.TrimSpace(text[len(d.prefix):])
	if query == "" {
		return
	}
	replyTo := target
	if strings.EqualFold(target, d.irc.Nick()) {
		// direct message: answer the sender, not ourselves
		replyTo = msg.Actor
	}
	if d.onRequest != nil {
		d.onRequest(msg.Actor, query, replyTo)
	}
}
