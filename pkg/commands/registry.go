package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry manages command registration and lookup.
type Registry struct {
	commands map[string]*Command
	mu       sync.RWMutex
}

// NewRegistry creates a new command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
	}
}

// Register registers a new command.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil {
		return fmt.Errorf("command cannot be nil")
	}

	if cmd.Name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %s has no handler", cmd.Name)
	}

	cmd.Name = normalizeName(cmd.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("command %s already registered", cmd.Name)
	}

	r.commands[cmd.Name] = cmd
	return nil
}

// Get retrieves a command by name.
func (r *Registry) Get(name string) (*Command, bool) {
	name = normalizeName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, exists := r.commands[name]
	return cmd, exists
}

// List returns all registered commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })

	return cmds
}

// IsCommand reports whether text starts with a registered command name.
func (r *Registry) IsCommand(text string) bool {
	name, _ := Parse(text)
	if name == "" {
		return false
	}
	_, exists := r.Get(name)
	return exists
}

// Execute parses text and runs the matching command. A leading "/" is
// accepted. Unknown commands produce ErrUnknownCommand.
func (r *Registry) Execute(ctx context.Context, req CommandRequest, text string) (CommandResponse, error) {
	name, args := Parse(text)
	if name == "" {
		return CommandResponse{Content: "No command given."}, fmt.Errorf("%w: empty input", ErrUnknownCommand)
	}

	cmd, ok := r.Get(name)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownCommand, name)
		return CommandResponse{Content: err.Error()}, err
	}

	req.Command = cmd.Name
	req.Args = args
	return cmd.Handler(ctx, req)
}

// Parse splits text into a lowercased command name and the raw argument
// string. Only the first space separates them, so arguments keep their
// inner spacing.
func Parse(text string) (string, string) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "/")
	if text == "" {
		return "", ""
	}

	name, args, _ := strings.Cut(text, " ")
	return strings.ToLower(name), strings.TrimSpace(args)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
}
