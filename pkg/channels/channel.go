// Package channels provides the connection interface and the manager that
// ties connections to the message bus.
package channels

import (
	"context"

	"ongoing/pkg/bus"
)

// Channel is one network connection (an IRC server).
type Channel interface {
	// ID returns the bus channel ID, e.g. "irc:rizon".
	ID() string

	// Name returns the human-readable channel name.
	Name() string

	// Start connects and begins delivering inbound messages to the bus.
	// It returns once the connection loop is running.
	Start(ctx context.Context) error

	// Stop disconnects gracefully.
	Stop(ctx context.Context) error

	// IsEnabled returns whether the channel is enabled in configuration.
	IsEnabled() bool

	// SendMessage writes an outbound bus message to the network.
	SendMessage(ctx context.Context, msg *bus.Message) error
}

// Status is implemented by channels that can report connection state.
type Status interface {
	Connected() bool
}
