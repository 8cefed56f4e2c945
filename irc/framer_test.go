package irc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramer_SingleFeed(t *testing.T) {
	var f Framer
	lines, err := f.Feed([]byte(":srv 001 bot :Welcome\r\nPING :abc\r\n\r\n   \npartial"))
	require.NoError(t, err)
	assert.Equal(t, []string{":srv 001 bot :Welcome", "PING :abc"}, lines)
	assert.Equal(t, len("partial"), f.Buffered())

	lines, err = f.Feed([]byte(" line\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"partial line"}, lines)
	assert.Zero(t, f.Buffered())
}

// Any split of the stream must frame the same lines as feeding it whole.
func TestFramer_SplitInvariance(t *testing.T) {
	stream := []byte(":a!b@c PRIVMSG #radio :hello world\r\n" +
		"PING :tok\r\n" +
		"\r\n" +
		"  :srv 001 NeonWaveBot :hi  \n" +
		":x!y@z JOIN #radio\r\n" +
		"tail-without-terminator")

	var whole Framer
	want, err := whole.Feed(stream)
	require.NoError(t, err)
	require.Len(t, want, 4)

	for chunk := 1; chunk <= len(stream); chunk++ {
		var f Framer
		var got []string
		for i := 0; i < len(stream); i += chunk {
			end := min(i+chunk, len(stream))
			lines, err := f.Feed(stream[i:end])
			require.NoError(t, err)
			got = append(got, lines...)
		}
		require.Equal(t, want, got, "chunk size %d", chunk)
		assert.Equal(t, whole.Buffered(), f.Buffered(), "chunk size %d", chunk)
	}
}

func TestFramer_MultibyteAcrossFeeds(t *testing.T) {
	var f Framer
	msg := []byte("PRIVMSG #r :caf\xc3\xa9\r\n")
	split := len("PRIVMSG #r :caf") + 1 // inside the two-byte rune
	lines, err := f.Feed(msg[:split])
	require.NoError(t, err)
	assert.Empty(t, lines)
	lines, err = f.Feed(msg[split:])
	require.NoError(t, err)
	assert.Equal(t, []string{"PRIVMSG #r :café"}, lines)
}

func TestFramer_MaxBuffered(t *testing.T) {
	f := Framer{Max: 8}
	lines, err := f.Feed([]byte("ok\r\n0123456789"))
	assert.Equal(t, []string{"ok"}, lines)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLineTooLong))
	assert.Zero(t, f.Buffered())

	lines, err = f.Feed([]byte("short\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, lines)
}

func TestFramer_Reset(t *testing.T) {
	var f Framer
	_, _ = f.Feed([]byte("half"))
	f.Reset()
	lines, err := f.Feed([]byte(" line\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"line"}, lines)
}
