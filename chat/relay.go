package chat

import (
	"context"
	"log/slog"

	"github.com/syaihu/Thunderirc-Radio/config"
	"github.com/syaihu/Thunderirc-Radio/events"
	"github.com/syaihu/Thunderirc-Radio/irc"
	"github.com/syaihu/Thunderirc-Radio/songrequest"
)

// Relay is the assembled bot: one IRC session, one event publisher and the
// request handler, driven by a Supervisor.
type Relay struct {
	*Supervisor

	Session   *irc.Session
	Publisher *events.Publisher
	Requests  *songrequest.Handler
}

// NewRelay builds a Relay from a validated Config.
func NewRelay(cfg *config.Config, logger *slog.Logger, opts ...irc.Option) *Relay {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	session := irc.NewSession(irc.Config{
		Server:       cfg.IRCServer,
		Port:         cfg.IRCPort,
		Nick:         cfg.IRCNick,
		RealName:     cfg.IRCRealName,
		Channels:     cfg.IRCChannels,
		UseTLS:       cfg.IRCUseTLS,
		MaxLineBytes: cfg.IRCMaxLineBytes,
		SendRate:     cfg.IRCSendRate,
		SendBurst:    cfg.IRCSendBurst,
	}, logger, opts...)
	publisher := events.NewPublisher(cfg.WebSocketURL, logger)
	requests := songrequest.NewHandler(songrequest.NewClient(cfg.APIURL, logger), session, logger, cfg.LookupTimeout)
	tasks := NewTaskSet(logger)

	submit := func(actor, query, replyTo string) {
		tasks.Go("song_request", func(ctx context.Context) {
			requests.Handle(ctx, actor, query, replyTo)
		})
	}
	dispatcher := NewDispatcher(session, publisher, cfg.RequestCommand, submit, logger)

	sup := NewSupervisor(session, publisher, dispatcher, tasks, Options{
		ReadTimeout:    cfg.IRCReadTimeout,
		HealthInterval: cfg.ReconnectInterval,
		ShutdownGrace:  cfg.ShutdownGrace,
		QuitMessage:    cfg.IRCQuitMessage,
	}, logger)

	return &Relay{
		Supervisor: sup,
		Session:    session,
		Publisher:  publisher,
		Requests:   requests,
	}
}
