// Package irc implements the client side of the IRC line protocol used by the relay.
//
// It provides three pieces, leaves first:
//   - Framer: turns the raw byte stream into trimmed, newline-terminated lines,
//     holding only the partial remainder between reads.
//   - Parse: splits one line into origin, actor, command and space separated
//     params. The trailing parameter is deliberately left split; consumers
//     rejoin it with Message.Text.
//   - Session: owns the transport (plain TCP or TLS), registers with NICK/USER,
//     answers PING, joins channels and sends lines. Transport failures never
//     surface as panics; they flip the session to disconnected and the caller
//     reconnects.
//
// Outbound lines are encoded with github.com/ergochat/irc-go/ircmsg and
// truncated to 512 bytes.
package irc
