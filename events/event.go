// Package events defines the envelopes the relay pushes to the web application
// and the Publisher that owns the outbound websocket.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidEvent is returned when an event fails boundary validation.
var ErrInvalidEvent = errors.New("events: invalid event")

// Type is the closed set of envelope types the relay emits.
type Type string

const (
	TypeChatMessage Type = "chat_message"
)

// Event is the {type, data} envelope written to the stream.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// ChatMessage is the data payload of a chat_message event.
type ChatMessage struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"` // UTC, RFC 3339
	IsBot     bool   `json:"isBot"`
}

// NewChatMessage builds a chat_message event stamped with at in UTC.
func NewChatMessage(username, message string, at time.Time, isBot bool) Event {
	return Event{
		Type: TypeChatMessage,
		Data: ChatMessage{
			Username:  username,
			Message:   message,
			Timestamp: at.UTC().Format(time.RFC3339Nano),
			IsBot:     isBot,
		},
	}
}

// Validate checks the envelope before it leaves the process.
func (e Event) Validate() error {
	switch e.Type {
	case TypeChatMessage:
		cm, ok := e.Data.(ChatMessage)
		if !ok {
			return fmt.Errorf("%w: chat_message data is %T", ErrInvalidEvent, e.Data)
		}
		if cm.Username == "" {
			return fmt.Errorf("%w: chat_message without username", ErrInvalidEvent)
		}
		if _, err := time.Parse(time.RFC3339Nano, cm.Timestamp); err != nil {
			return fmt.Errorf("%w: chat_message timestamp: %v", ErrInvalidEvent, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
}

// Inbound is an envelope pushed by the web application. Data is left raw; the
// relay only inspects the type.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
