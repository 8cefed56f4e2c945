// Package chat runs the bot itself.
//
// A Relay owns one IRC session and one event publisher. Its Supervisor drives
// two loops:
//   - the receive loop polls the IRC connection, parses each line and hands it
//     to the Dispatcher, which answers PING, joins channels after the welcome
//     reply, forwards channel text as chat_message events and spots request
//     commands;
//   - the health loop periodically reconnects whichever transport is down.
//
// Song requests run on a TaskSet so a slow lookup never stalls the receive
// loop. On shutdown the supervisor waits for them up to a grace period, then
// sends QUIT and closes both transports.
package chat
