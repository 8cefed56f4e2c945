package irc

import (
	"errors"
	"strings"
)

// ErrMalformedLine is returned by Parse for lines that carry no command.
var ErrMalformedLine = errors.New("irc: malformed line")

// Commands and numerics the relay reacts to.
const (
	CmdPing    = "PING"
	CmdPong    = "PONG"
	CmdJoin    = "JOIN"
	CmdPrivmsg = "PRIVMSG"
	CmdNick    = "NICK"
	CmdUser    = "USER"
	CmdQuit    = "QUIT"

	RplWelcome = "001"
)

// Message is one parsed inbound line.
//
// Params are the space separated tokens after the command. A trailing
// parameter is not reassembled, so ":hello world" arrives as ":hello" and
// "world"; callers that want the text rejoin it with Text.
type Message struct {
	// Origin is the sender prefix without the leading ':'; empty for server lines without one.
	Origin string
	// Actor is the nick part of Origin when it has the nick!user@host form.
	Actor   string
	Command string
	Params  []string
	Raw     string
}

// Parse converts a framed line into a Message.
func Parse(line string) (*Message, error) {
	rest := line
	var origin string
	if strings.HasPrefix(line, ":") {
		var ok bool
		origin, rest, ok = strings.Cut(line[1:], " ")
		if !ok {
			return nil, ErrMalformedLine
		}
	}

	parts := strings.Split(rest, " ")
	if parts[0] == "" {
		return nil, ErrMalformedLine
	}

	msg := &Message{
		Origin:  origin,
		Command: parts[0],
		Params:  parts[1:],
		Raw:     line,
	}
	if nick, _, ok := strings.Cut(origin, "!"); ok {
		msg.Actor = nick
	}
	return msg, nil
}

// Param returns the i-th parameter or "" when absent.
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Text rejoins the params from index i with single spaces and strips one
// leading ':' left over from the trailing-parameter marker.
func (m *Message) Text(i int) string {
	if i >= len(m.Params) {
		return ""
	}
	return strings.TrimPrefix(strings.Join(m.Params[i:], " "), ":")
}

// Token returns the PING/PONG token with any ':' marker removed.
func (m *Message) Token() string {
	return strings.TrimPrefix(m.Param(0), ":")
}
