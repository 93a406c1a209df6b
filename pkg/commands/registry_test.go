package commands

import (
	"context"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in, name, args string
	}{
		{"ongoing list_bots", "ongoing", "list_bots"},
		{"/Ongoing add_filter Kantai  720p", "ongoing", "add_filter Kantai  720p"},
		{"  status  ", "status", ""},
		{"", "", ""},
		{"/", "", ""},
	}
	for _, tt := range tests {
		name, args := Parse(tt.in)
		if name != tt.name || args != tt.args {
			t.Errorf("Parse(%q) = %q, %q; want %q, %q", tt.in, name, args, tt.name, tt.args)
		}
	}
}

func TestRegistry_RegisterAndExecute(t *testing.T) {
	registry := NewRegistry()

	var got CommandRequest
	err := registry.Register(&Command{
		Name: "/Echo",
		Handler: func(ctx context.Context, req CommandRequest) (CommandResponse, error) {
			got = req
			return CommandResponse{Content: req.Args}, nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(&Command{Name: "echo", Handler: func(context.Context, CommandRequest) (CommandResponse, error) {
		return CommandResponse{}, nil
	}}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := registry.Register(&Command{Name: "nohandler"}); err == nil {
		t.Fatal("expected registration without handler to fail")
	}

	if !registry.IsCommand("ECHO hi") || registry.IsCommand("other") {
		t.Fatal("IsCommand mismatch")
	}

	resp, err := registry.Execute(context.Background(), CommandRequest{Source: "cli"}, "echo a  b")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.Content != "a  b" || got.Command != "echo" || got.Source != "cli" {
		t.Fatalf("unexpected request %+v / response %+v", got, resp)
	}

	if _, err := registry.Execute(context.Background(), CommandRequest{}, "missing"); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	if _, err := registry.Execute(context.Background(), CommandRequest{}, "   "); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand for empty input, got %v", err)
	}
}

func TestResponseLines(t *testing.T) {
	lines := CommandResponse{Content: "a\n\n  \nb\n"}.Lines()
	if len(lines) != 2 || lines[0] != "a" || lines[1] != "b" {
		t.Fatalf("unexpected lines %q", lines)
	}
}
