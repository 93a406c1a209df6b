package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeChannel struct {
	id        string
	connected bool
}

func (f fakeChannel) Name() string    { return f.id }
func (f fakeChannel) ID() string      { return f.id }
func (f fakeChannel) Connected() bool { return f.connected }

type fakeManager []Channel

func (m fakeManager) GetEnabledChannels() []Channel { return m }

func TestStatusHandler_IncludesRuntimeAndChannels(t *testing.T) {
	mgr := fakeManager{
		fakeChannel{id: "irc:rizon", connected: true},
		fakeChannel{id: "irc:abjects"},
	}
	resp, err := statusHandler(mgr)(context.Background(), CommandRequest{})
	if err != nil {
		t.Fatalf("statusHandler returned error: %v", err)
	}

	required := []string{
		"Version:",
		"OS:",
		"Go:",
		"Uptime:",
		"Memory:",
		"irc:rizon: connected",
		"irc:abjects: disconnected",
	}
	for _, want := range required {
		if !strings.Contains(resp.Content, want) {
			t.Fatalf("expected status output to contain %q, got:\n%s", want, resp.Content)
		}
	}
}

func TestHelpHandler(t *testing.T) {
	registry := NewRegistry()
	if err := RegisterBuiltinCommands(registry, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := registry.Execute(context.Background(), CommandRequest{}, "help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(resp.Content, "status") || !strings.Contains(resp.Content, "help") {
		t.Fatalf("help output missing commands:\n%s", resp.Content)
	}

	resp, err = registry.Execute(context.Background(), CommandRequest{}, "help status")
	if err != nil || !strings.HasPrefix(resp.Content, "status - ") {
		t.Fatalf("help status = %q, %v", resp.Content, err)
	}

	if _, err := registry.Execute(context.Background(), CommandRequest{}, "help nope"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestCompactDescription(t *testing.T) {
	if got := compactDescription("  a   b  ", 10); got != "a b" {
		t.Fatalf("got %q", got)
	}
	if got := compactDescription("abcdef", 4); got != "abc…" {
		t.Fatalf("got %q", got)
	}
}
