package commands

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnknownCommand is returned for a command name nobody registered.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUnknownSubcommand is returned for an unrecognized subcommand.
	ErrUnknownSubcommand = errors.New("unknown subcommand")
)

// Command represents a text command.
type Command struct {
	Name        string         // Command name, e.g. "ongoing"
	Description string         // Short description
	Usage       string         // Usage text, may span several lines
	Handler     CommandHandler // Handler function
}

// CommandHandler handles command execution. A non-nil error means the
// command reported a problem; Content still carries the user-facing text.
type CommandHandler func(ctx context.Context, req CommandRequest) (CommandResponse, error)

// CommandRequest contains command request information.
type CommandRequest struct {
	Source  string // "irc", "cli", "http"
	Server  string // IRC server name, empty outside IRC
	Nick    string // Requesting nick, empty outside IRC
	Command string // Command name (without prefix)
	Args    string // Raw arguments after the command name
}

// CommandResponse contains command response.
type CommandResponse struct {
	Content string
}

// Lines splits Content into non-empty lines for line-oriented transports.
func (r CommandResponse) Lines() []string {
	var lines []string
	for _, line := range strings.Split(r.Content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
