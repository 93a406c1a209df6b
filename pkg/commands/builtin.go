package commands

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"ongoing/pkg/version"
)

var processStartTime = time.Now()

// ChannelManager interface to avoid circular dependency with channels package.
type ChannelManager interface {
	GetEnabledChannels() []Channel
}

// Channel interface for basic channel information.
type Channel interface {
	Name() string
	ID() string
}

// connectedChannel is implemented by channels that track a live connection.
type connectedChannel interface {
	Connected() bool
}

// RegisterBuiltinCommands registers help and status. channels may be nil.
func RegisterBuiltinCommands(registry *Registry, channels ChannelManager) error {
	builtins := []*Command{
		{
			Name:        "help",
			Description: "Show available commands",
			Usage:       "help [command]",
			Handler:     helpHandler(registry),
		},
		{
			Name:        "status",
			Description: "Show daemon status",
			Usage:       "status",
			Handler:     statusHandler(channels),
		},
	}

	for _, cmd := range builtins {
		if err := registry.Register(cmd); err != nil {
			return fmt.Errorf("failed to register %s: %w", cmd.Name, err)
		}
	}

	return nil
}

// helpHandler creates a handler for the help command.
func helpHandler(registry *Registry) CommandHandler {
	return func(ctx context.Context, req CommandRequest) (CommandResponse, error) {
		if name, _ := Parse(req.Args); name != "" {
			cmd, exists := registry.Get(name)
			if !exists {
				err := fmt.Errorf("%w: %s", ErrUnknownCommand, name)
				return CommandResponse{Content: err.Error()}, err
			}
			return CommandResponse{
				Content: fmt.Sprintf("%s - %s\n%s", cmd.Name, cmd.Description, cmd.Usage),
			}, nil
		}

		var sb strings.Builder
		sb.WriteString("Available commands:\n")
		for _, cmd := range registry.List() {
			fmt.Fprintf(&sb, "  %-10s %s\n", cmd.Name, compactDescription(cmd.Description, 72))
		}
		sb.WriteString("Use 'help <command>' for details.")

		return CommandResponse{Content: sb.String()}, nil
	}
}

func compactDescription(desc string, limit int) string {
	desc = strings.Join(strings.Fields(strings.TrimSpace(desc)), " ")
	if limit <= 0 {
		limit = 72
	}
	runes := []rune(desc)
	if len(runes) <= limit {
		return desc
	}
	if limit <= 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}

// statusHandler creates a handler for the status command.
func statusHandler(channels ChannelManager) CommandHandler {
	return func(ctx context.Context, req CommandRequest) (CommandResponse, error) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		var sb strings.Builder
		fmt.Fprintf(&sb, "Version: %s\n", version.GetVersion())
		fmt.Fprintf(&sb, "OS: %s/%s  Go: %s\n", runtime.GOOS, runtime.GOARCH, runtime.Version())
		fmt.Fprintf(&sb, "Uptime: %s\n", time.Since(processStartTime).Round(time.Second))
		fmt.Fprintf(&sb, "Memory: %.2f MB", float64(mem.Alloc)/1024.0/1024.0)

		if channels != nil {
			for _, ch := range channels.GetEnabledChannels() {
				state := "enabled"
				if c, ok := ch.(connectedChannel); ok {
					state = "disconnected"
					if c.Connected() {
						state = "connected"
					}
				}
				fmt.Fprintf(&sb, "\n%s: %s", ch.ID(), state)
			}
		}

		return CommandResponse{Content: sb.String()}, nil
	}
}
