package songrequest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/syaihu/Thunderirc-Radio/telemetry"
)

// unknownLabel stands in for a missing title or artist.
const unknownLabel = "Unknown"

// Request outcomes, used as the song_requests_total label.
const (
	OutcomeAdded    = "added"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Lookuper resolves a query for a user.
type Lookuper interface {
	Lookup(ctx context.Context, username, query string) (*Result, error)
}

// Replier delivers a line to a channel.
type Replier interface {
	SendMessage(target, text string) error
}

// Handler performs one lookup per request and always answers with exactly one reply.
type Handler struct {
	lookup  Lookuper
	reply   Replier
	log     *slog.Logger
	timeout time.Duration
}

// NewHandler wires a lookup backend to a reply sink. timeout bounds each lookup.
func NewHandler(lookup Lookuper, reply Replier, logger *slog.Logger, timeout time.Duration) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handler{
		lookup:  lookup,
		reply:   reply,
		log:     logger.With(slog.String("component", "songrequest")),
		timeout: timeout,
	}
}

// Handle looks query up on behalf of actor and sends the outcome to channel.
// It returns the outcome label.
func (h *Handler) Handle(ctx context.Context, actor, query, channel string) string {
	ctx = telemetry.WithCorrelation(ctx, uuid.New().String())
	log := telemetry.LoggerWithCorr(ctx, h.log)
	ctx, span := telemetry.StartRequestSpan(ctx, actor, channel)
	defer span.End()

	telemetry.AddInflight(1)
	defer telemetry.AddInflight(-1)

	log.Info("song request", slog.String("user", actor), slog.String("query", query), slog.String("channel", channel))

	var (
		reply, outcome string
		lookupErr      error
	)
	telemetry.TimeFunc(telemetry.SongRequestDuration, func() {
		lctx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()
		res, err := h.lookup.Lookup(lctx, actor, query)
		switch {
		case err != nil:
			log.Error("failed to handle song request", slog.Any("err", err))
			lookupErr = err
			reply, outcome = FormatFailure(actor), OutcomeError
		case res.Success:
			reply, outcome = FormatAdded(res.Track), OutcomeAdded
		default:
			reply, outcome = FormatNotFound(actor, query), OutcomeNotFound
		}
	})
	telemetry.FinishSpan(span, outcome, lookupErr)
	telemetry.ObserveSongRequest(outcome)

	if err := h.reply.SendMessage(channel, reply); err != nil {
		log.Warn("song request reply not delivered", slog.String("outcome", outcome), slog.Any("err", err))
	}
	return outcome
}

// FormatAdded is the confirmation reply; a nil track or blank fields fall back to Unknown.
func FormatAdded(track *Track) string {
	title, artist := unknownLabel, unknownLabel
	if track != nil {
		if track.Title != "" {
			title = track.Title
		}
		if track.Artist != "" {
			artist = track.Artist
		}
	}
	return fmt.Sprintf("✅ Added \"%s\" by %s to the queue!", title, artist)
}

// FormatNotFound names the requester and the original query.
func FormatNotFound(actor, query string) string {
	return fmt.Sprintf("❌ Sorry %s, no tracks found for \"%s\"", actor, query)
}

// FormatFailure is the generic reply for transport or protocol failures.
func FormatFailure(actor string) string {
	return fmt.Sprintf("❌ Sorry %s, there was an error processing your request.", actor)
}
