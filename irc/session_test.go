package irc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syaihu/Thunderirc-Radio/testutil"
)

const waitLine = 2 * time.Second

func newTestSession(t *testing.T, srv *testutil.IRCServer, channels ...string) *Session {
	t.Helper()
	s := NewSession(Config{
		Server:   srv.Host(),
		Port:     srv.Port(),
		Nick:     "NeonWaveBot",
		RealName: "NeonWave Radio Bot",
		Channels: channels,
	}, nil)
	t.Cleanup(func() { s.Close("test done") })
	return s
}

func TestSession_ConnectRegisters(t *testing.T) {
	srv := testutil.NewIRCServer(t)
	s := newTestSession(t, srv)

	require.False(t, s.Connected())
	require.NoError(t, s.Connect(context.Background()))
	assert.True(t, s.Connected())

	assert.Equal(t, "NICK NeonWaveBot", srv.Expect(waitLine))
	assert.Equal(t, "USER NeonWaveBot 0 * :NeonWave Radio Bot", srv.Expect(waitLine))
	srv.ExpectNone(50 * time.Millisecond)
}

func TestSession_ConnectFailure(t *testing.T) {
	srv := testutil.NewIRCServer(t)
	port := srv.Port()
	srv.Close()

	s := NewSession(Config{Server: "127.0.0.1", Port: port, Nick: "bot"}, nil)
	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, s.Connected())
}

func TestSession_SendHelpers(t *testing.T) {
	srv := testutil.NewIRCServer(t)
	s := newTestSession(t, srv, "radio", "#lobby")
	require.NoError(t, s.Connect(context.Background()))
	srv.Expect(waitLine)
	srv.Expect(waitLine)

	require.NoError(t, s.SendMessage("#radio", "hello there"))
	assert.Equal(t, "PRIVMSG #radio :hello there", srv.Expect(waitLine))

	require.NoError(t, s.SendMessage("#radio", "single"))
	assert.Equal(t, "PRIVMSG #radio :single", srv.Expect(waitLine))

	require.NoError(t, s.Pong("abc"))
	assert.Equal(t, "PONG :abc", srv.Expect(waitLine))

	s.JoinAll()
	assert.Equal(t, "JOIN #radio", srv.Expect(waitLine))
	assert.Equal(t, "JOIN #lobby", srv.Expect(waitLine))

	require.NoError(t, s.SendLine("MODE NeonWaveBot +B"))
	assert.Equal(t, "MODE NeonWaveBot +B", srv.Expect(waitLine))

	assert.Error(t, s.SendLine("PRIVMSG #x :a\r\nQUIT"))
}

func TestSession_LongLinesAreTruncated(t *testing.T) {
	srv := testutil.NewIRCServer(t)
	s := newTestSession(t, srv)
	require.NoError(t, s.Connect(context.Background()))
	srv.Expect(waitLine)
	srv.Expect(waitLine)

	require.NoError(t, s.SendMessage("#radio", strings.Repeat("x", 1000)))
	line := srv.Expect(waitLine)
	assert.True(t, strings.HasPrefix(line, "PRIVMSG #radio :xxx"))
	assert.LessOrEqual(t, len(line), 510)
}

func TestSession_SendWhileDisconnectedIsNoop(t *testing.T) {
	srv := testutil.NewIRCServer(t)
	s := newTestSession(t, srv)

	err := s.SendMessage("#radio", "nobody hears this")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Zero(t, srv.Accepted())
}

func TestSession_ReadLines(t *testing.T) {
	srv := testutil.NewIRCServer(t)
	s := newTestSession(t, srv)
	require.NoError(t, s.Connect(context.Background()))
	srv.Expect(waitLine)
	srv.Expect(waitLine)

	// timeout is benign
	lines, err := s.ReadLines(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.True(t, s.Connected())

	srv.Send("PING :abc\r\n:srv 001 NeonWaveBot :Welcome\r\n")
	var got []string
	deadline := time.Now().Add(waitLine)
	for len(got) < 2 && time.Now().Before(deadline) {
		lines, err := s.ReadLines(100 * time.Millisecond)
		require.NoError(t, err)
		got = append(got, lines...)
	}
	assert.Equal(t, []string{"PING :abc", ":srv 001 NeonWaveBot :Welcome"}, got)
}

func TestSession_EOFMarksDisconnected(t *testing.T) {
	srv := testutil.NewIRCServer(t)
	s := newTestSession(t, srv)
	require.NoError(t, s.Connect(context.Background()))
	srv.Expect(waitLine)
	srv.Expect(waitLine)

	srv.DropClient()
	var err error
	deadline := time.Now().Add(waitLine)
	for s.Connected() && time.Now().Before(deadline) {
		_, err = s.ReadLines(100 * time.Millisecond)
	}
	require.Error(t, err)
	assert.False(t, s.Connected())

	_, err = s.ReadLines(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSession_LineCapDropsConnection(t *testing.T) {
	srv := testutil.NewIRCServer(t)
	s := NewSession(Config{Server: srv.Host(), Port: srv.Port(), Nick: "bot", MaxLineBytes: 16}, nil)
	t.Cleanup(func() { s.Close("bye") })
	require.NoError(t, s.Connect(context.Background()))
	srv.Expect(waitLine)
	srv.Expect(waitLine)

	srv.Send(strings.Repeat("a", 64))
	var err error
	deadline := time.Now().Add(waitLine)
	for err == nil && time.Now().Before(deadline) {
		_, err = s.ReadLines(100 * time.Millisecond)
	}
	assert.True(t, errors.Is(err, ErrLineTooLong))
	assert.False(t, s.Connected())
}

func TestSession_ReconnectReplacesConnection(t *testing.T) {
	srv := testutil.NewIRCServer(t)
	s := newTestSession(t, srv)
	require.NoError(t, s.Connect(context.Background()))
	srv.Expect(waitLine)
	srv.Expect(waitLine)

	s.Abort(errors.New("simulated failure"))
	assert.False(t, s.Connected())

	require.NoError(t, s.Connect(context.Background()))
	assert.True(t, s.Connected())
	assert.Equal(t, "NICK NeonWaveBot", srv.Expect(waitLine))
	assert.Equal(t, "USER NeonWaveBot 0 * :NeonWave Radio Bot", srv.Expect(waitLine))
	assert.Equal(t, 2, srv.Accepted())
}

func TestSession_CloseSendsQuit(t *testing.T) {
	srv := testutil.NewIRCServer(t)
	s := newTestSession(t, srv)
	require.NoError(t, s.Connect(context.Background()))
	srv.Expect(waitLine)
	srv.Expect(waitLine)

	s.Close("NeonWave Bot shutting down")
	assert.Equal(t, "QUIT :NeonWave Bot shutting down", srv.Expect(waitLine))
	assert.False(t, s.Connected())

	// second close is harmless
	s.Close("again")
	srv.ExpectNone(50 * time.Millisecond)
}

func TestSession_SendRateLimit(t *testing.T) {
	srv := testutil.NewIRCServer(t)
	s := NewSession(Config{
		Server:       srv.Host(),
		Port:         srv.Port(),
		Nick:         "NeonWaveBot",
		RealName:     "NeonWave Radio Bot",
		WriteTimeout: 100 * time.Millisecond,
		SendRate:     1,
		SendBurst:    1,
	}, nil)
	t.Cleanup(func() { s.Close("test done") })

	// registration is not throttled
	require.NoError(t, s.Connect(context.Background()))
	srv.Expect(waitLine)
	srv.Expect(waitLine)

	require.NoError(t, s.SendMessage("#radio", "first"))
	err := s.SendMessage("#radio", "second")
	assert.ErrorIs(t, err, ErrThrottled)
	assert.True(t, s.Connected(), "throttling must not drop the connection")

	assert.Equal(t, "PRIVMSG #radio :first", srv.Expect(waitLine))
	srv.ExpectNone(50 * time.Millisecond)
}
