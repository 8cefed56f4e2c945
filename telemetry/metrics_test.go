package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsInitialized(t *testing.T) {
	Init()
	Init() // second call must not panic on duplicate registration

	assert.NotNil(t, SongRequestDuration)
	assert.NotNil(t, ReconnectAttempts)
	assert.NotNil(t, EventsPublished)
	assert.NotNil(t, SongRequests)
	assert.NotNil(t, IRCConnectedGauge)
	assert.NotNil(t, EventsConnectedGauge)
}

func TestObserveHelpers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(ReconnectAttempts.WithLabelValues("irc", "error"))
	ObserveReconnect("irc", errors.New("dial refused"))
	assert.Equal(t, before+1, testutil.ToFloat64(ReconnectAttempts.WithLabelValues("irc", "error")))

	before = testutil.ToFloat64(EventsPublished.WithLabelValues("chat_message", "ok"))
	ObservePublish("chat_message", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(EventsPublished.WithLabelValues("chat_message", "ok")))

	before = testutil.ToFloat64(EventsReceived.WithLabelValues("unknown"))
	ObserveReceived("")
	assert.Equal(t, before+1, testutil.ToFloat64(EventsReceived.WithLabelValues("unknown")))

	SetIRCConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(IRCConnectedGauge))
	SetIRCConnected(false)
	assert.Zero(t, testutil.ToFloat64(IRCConnectedGauge))
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	testHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})
	prometheus.MustRegister(testHistogram)
	defer prometheus.Unregister(testHistogram)

	executed := false
	duration := TimeFunc(testHistogram, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})

	assert.True(t, executed)
	assert.GreaterOrEqual(t, duration, 10*time.Millisecond)

	metric := &dto.Metric{}
	require.NoError(t, testHistogram.Write(metric))
	require.NotNil(t, metric.Histogram)
	assert.EqualValues(t, 1, metric.Histogram.GetSampleCount())
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetCorrelation(ctx))
	ctx = WithCorrelation(ctx, "abc-123")
	assert.Equal(t, "abc-123", GetCorrelation(ctx))
	assert.NotNil(t, LoggerWithCorr(ctx, nil), "nil base still yields a logger")
	base := slog.New(slog.DiscardHandler)
	assert.Same(t, base, LoggerWithCorr(context.Background(), base), "base unchanged without corr")
}
