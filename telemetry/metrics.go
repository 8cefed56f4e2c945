// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	LinesReceived     prometheus.Counter
	LinesSent         prometheus.Counter
	ParseFailures     prometheus.Counter
	ReconnectAttempts *prometheus.CounterVec // transport, result
	EventsPublished   *prometheus.CounterVec // type, result
	EventsReceived    *prometheus.CounterVec // type
	SongRequests      *prometheus.CounterVec // outcome

	// Histograms (seconds)
	SongRequestDuration prometheus.Observer

	// Gauges
	IRCConnectedGauge    prometheus.Gauge
	EventsConnectedGauge prometheus.Gauge
	RequestsInflight     prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		LinesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "irc_lines_received_total", Help: "Number of complete IRC lines framed from the transport"})
		LinesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "irc_lines_sent_total", Help: "Number of IRC lines written to the transport"})
		ParseFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "irc_parse_failures_total", Help: "Number of IRC lines dropped as malformed"})
		ReconnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{Name: "reconnect_attempts_total", Help: "Reconnection attempts by transport and result"}, []string{"transport", "result"})
		EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{Name: "events_published_total", Help: "Events sent to the web event stream by type and result"}, []string{"type", "result"})
		EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{Name: "events_received_total", Help: "Events pushed by the web event stream by type"}, []string{"type"})
		SongRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "song_requests_total", Help: "Song requests handled by outcome"}, []string{"outcome"})
		SongRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "song_request_duration_seconds", Help: "Song request lookup API duration seconds, excluding the IRC reply", Buckets: prometheus.DefBuckets})
		IRCConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "irc_connected", Help: "IRC transport connected=1 disconnected=0"})
		EventsConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "events_connected", Help: "Event stream connected=1 disconnected=0"})
		RequestsInflight = promauto.NewGauge(prometheus.GaugeOpts{Name: "song_requests_inflight", Help: "Song requests currently awaiting the lookup API"})
	})
}

// The helpers below are nil-safe so packages can be exercised without Init.

// IncLinesReceived counts one framed inbound line.
func IncLinesReceived() {
	if LinesReceived != nil {
		LinesReceived.Inc()
	}
}

// IncLinesSent counts one outbound line.
func IncLinesSent() {
	if LinesSent != nil {
		LinesSent.Inc()
	}
}

// IncParseFailures counts one dropped line.
func IncParseFailures() {
	if ParseFailures != nil {
		ParseFailures.Inc()
	}
}

// ObserveReconnect records a reconnection attempt for transport ("irc" or "events").
func ObserveReconnect(transport string, err error) {
	if ReconnectAttempts == nil {
		return
	}
	ReconnectAttempts.WithLabelValues(transport, result(err)).Inc()
}

// ObservePublish records one publish attempt.
func ObservePublish(eventType string, err error) {
	if EventsPublished == nil {
		return
	}
	EventsPublished.WithLabelValues(eventType, result(err)).Inc()
}

// ObserveReceived records one inbound event-stream frame.
func ObserveReceived(eventType string) {
	if EventsReceived == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	EventsReceived.WithLabelValues(eventType).Inc()
}

// ObserveSongRequest records the outcome label of a finished request.
func ObserveSongRequest(outcome string) {
	if SongRequests != nil {
		SongRequests.WithLabelValues(outcome).Inc()
	}
}

// SetIRCConnected sets gauge to 1 if connected else 0.
func SetIRCConnected(connected bool) { setBool(IRCConnectedGauge, connected) }

// SetEventsConnected sets gauge to 1 if connected else 0.
func SetEventsConnected(connected bool) { setBool(EventsConnectedGauge, connected) }

// AddInflight adjusts the in-flight request gauge.
func AddInflight(delta float64) {
	if RequestsInflight != nil {
		RequestsInflight.Add(delta)
	}
}

func setBool(g prometheus.Gauge, v bool) {
	if g == nil {
		return
	}
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns base with a corr attribute if ctx carries one.
func LoggerWithCorr(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.New(slog.DiscardHandler)
	}
	if id := GetCorrelation(ctx); id != "" {
		return base.With(slog.String("corr", id))
	}
	return base
}
