package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syaihu/Thunderirc-Radio/events"
	"github.com/syaihu/Thunderirc-Radio/irc"
)

type fakeIRC struct {
	mu    sync.Mutex
	pongs []string
	joins int
	nick  string
}

func (f *fakeIRC) Nick() string { return f.nick }

func (f *fakeIRC) Pong(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pongs = append(f.pongs, token)
	return nil
}

func (f *fakeIRC) JoinAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins++
}

type fakeSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeSink) Publish(_ context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

type request struct{ actor, query, replyTo string }

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeIRC, *fakeSink, *[]request) {
	t.Helper()
	session := &fakeIRC{nick: "NeonWaveBot"}
	sink := &fakeSink{}
	var reqs []request
	d := NewDispatcher(session, sink, ".request", func(actor, query, replyTo string) {
		reqs = append(reqs, request{actor, query, replyTo})
	}, nil)
	d.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return d, session, sink, &reqs
}

func dispatchLine(t *testing.T, d *Dispatcher, line string) {
	t.Helper()
	msg, err := irc.Parse(line)
	require.NoError(t, err)
	d.Dispatch(context.Background(), msg)
}

func TestDispatcher_PingAnswersWithToken(t *testing.T) {
	d, session, sink, _ := newTestDispatcher(t)

	dispatchLine(t, d, "PING :abc")
	dispatchLine(t, d, "PING")

	assert.Equal(t, []string{"abc"}, session.pongs)
	assert.Empty(t, sink.events)
}

func TestDispatcher_WelcomeJoinsChannels(t *testing.T) {
	d, session, _, _ := newTestDispatcher(t)

	dispatchLine(t, d, ":irc.example.net 001 NeonWaveBot :Welcome")
	assert.Equal(t, 1, session.joins)
}

func TestDispatcher_ChatMessagePublished(t *testing.T) {
	d, _, sink, reqs := newTestDispatcher(t)

	dispatchLine(t, d, ":alice!a@h PRIVMSG #neonwave-radio :hello there")

	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypeChatMessage, sink.events[0].Type)
	cm, ok := sink.events[0].Data.(events.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "alice", cm.Username)
	assert.Equal(t, "hello there", cm.Message)
	assert.False(t, cm.IsBot)
	assert.Equal(t, "2024-05-01T12:00:00Z", cm.Timestamp)
	assert.Empty(t, *reqs)
}

func TestDispatcher_RequestCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []request
		publish int
	}{
		{
			name:    "channel request",
			line:    ":alice!a@h PRIVMSG #radio :.request  night call ",
			want:    []request{{"alice", "night call", "#radio"}},
			publish: 1,
		},
		{
			name:    "empty query ignored",
			line:    ":alice!a@h PRIVMSG #radio :.request   ",
			publish: 1,
		},
		{
			name:    "command without separator ignored",
			line:    ":alice!a@h PRIVMSG #radio :.requestfoo",
			publish: 1,
		},
		{
			name:    "prefix must start the message",
			line:    ":alice!a@h PRIVMSG #radio :please .request foo",
			publish: 1,
		},
		{
			name:    "direct message answered to sender",
			line:    ":alice!a@h PRIVMSG NeonWaveBot :.request foo",
			want:    []request{{"alice", "foo", "alice"}},
			publish: 1,
		},
		{
			name: "missing text ignored",
			line: ":alice!a@h PRIVMSG #radio",
		},
		{
			name: "server origin ignored",
			line: ":irc.example.net PRIVMSG #radio :.request foo",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, sink, reqs := newTestDispatcher(t)
			dispatchLine(t, d, tt.line)
			assert.Equal(t, tt.want, *reqs)
			assert.Len(t, sink.events, tt.publish)
		})
	}
}

func TestDispatcher_IgnoresUnknownCommands(t *testing.T) {
	d, session, sink, reqs := newTestDispatcher(t)

	dispatchLine(t, d, ":irc.example.net NOTICE * :Looking up your hostname")
	dispatchLine(t, d, ":NeonWaveBot!b@h JOIN #radio")
	dispatchLine(t, d, ":bob!b@h JOIN #radio")

	assert.Empty(t, session.pongs)
	assert.Zero(t, session.joins)
	assert.Empty(t, sink.events)
	assert.Empty(t, *reqs)
}
