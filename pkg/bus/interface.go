// Package bus routes messages between IRC connections and the components
// that consume them.
//
// Inbound messages (from a connection) go to every inbound handler, one
// message at a time, in arrival order. Outbound messages (to a connection)
// go to the handlers registered for their ChannelID.
package bus

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageType represents the type of message.
type MessageType string

const (
	// MessageTypeText is a channel message.
	MessageTypeText MessageType = "text"
	// MessageTypePrivate is a private message addressed to us.
	MessageTypePrivate MessageType = "private"
	// MessageTypeCommand is an admin command text.
	MessageTypeCommand MessageType = "command"
	// MessageTypeNotice is sent as a NOTICE instead of a PRIVMSG.
	MessageTypeNotice MessageType = "notice"
	// MessageTypeJoin asks a connection to join Target.
	MessageTypeJoin MessageType = "join"
)

// Message represents a message flowing through the bus.
type Message struct {
	ID        string                 `json:"id"`
	ChannelID string                 `json:"channel_id"` // connection, e.g. "irc:rizon"
	Server    string                 `json:"server"`     // configured server name
	Target    string                 `json:"target"`     // IRC channel or nick the line is addressed to
	Nick      string                 `json:"nick"`       // sender nick for inbound messages
	Type      MessageType            `json:"type"`
	Content   string                 `json:"content"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewMessage returns a message with a fresh ID and timestamp.
func NewMessage(channelID string, typ MessageType, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Type:      typ,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Handler is a function that processes messages.
type Handler func(ctx context.Context, msg *Message) error

// Bus is the interface for message routing.
type Bus interface {
	// Start starts the message bus.
	Start() error

	// Stop stops the message bus.
	Stop() error

	// RegisterInboundHandler adds a handler that receives every inbound message.
	RegisterInboundHandler(handler Handler)

	// RegisterHandler registers an outbound handler for a specific channel.
	RegisterHandler(channelID string, handler Handler)

	// UnregisterHandlers removes all outbound handlers for a channel.
	UnregisterHandlers(channelID string)

	// SendInbound sends an inbound message (from a connection).
	SendInbound(msg *Message) error

	// SendOutbound sends an outbound message (to a connection).
	SendOutbound(msg *Message) error

	// GetMetrics returns current bus metrics.
	GetMetrics() map[string]uint64
}

// ErrStopped is returned when sending on a stopped bus.
var ErrStopped = errors.New("bus is shutting down")

// IRCChannelID returns the bus channel ID of the named IRC server connection.
func IRCChannelID(server string) string {
	return "irc:" + server
}
