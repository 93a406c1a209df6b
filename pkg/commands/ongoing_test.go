package commands

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"ongoing/pkg/admin"
	"ongoing/pkg/logger"
	"ongoing/pkg/rules"
	"ongoing/pkg/state"
)

func newTestRegistry(t *testing.T) (*Registry, *rules.Store) {
	t.Helper()

	log := logger.NewNop()
	kv, err := state.NewFileStore(log, filepath.Join(t.TempDir(), "rules.json"))
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	store := rules.NewStore(log, kv, "#news")
	registry := NewRegistry()
	if err := registry.Register(OngoingCommand("ongoing", admin.New(log, store, nil))); err != nil {
		t.Fatalf("register: %v", err)
	}
	return registry, store
}

func run(t *testing.T, r *Registry, text string) (string, error) {
	t.Helper()
	resp, err := r.Execute(context.Background(), CommandRequest{Source: "cli"}, text)
	return resp.Content, err
}

func TestOngoing_ChannelGetAndSet(t *testing.T) {
	r, store := newTestRegistry(t)

	out, err := run(t, r, "ongoing channel")
	if err != nil || out != "The current channel is #news" {
		t.Fatalf("get channel = %q, %v", out, err)
	}
	out, err = run(t, r, "ongoing channel #Anime")
	if err != nil || out != "The channel set to #anime" {
		t.Fatalf("set channel = %q, %v", out, err)
	}
	if ch, _ := store.Channel(context.Background()); ch != "#anime" {
		t.Fatalf("stored channel %q", ch)
	}
}

func TestOngoing_BotLifecycle(t *testing.T) {
	r, store := newTestRegistry(t)

	out, err := run(t, r, "ongoing list_bots")
	if err != nil || out != "There are no added bots to watch for updates on." {
		t.Fatalf("empty list = %q, %v", out, err)
	}

	// The pattern keeps its inner spaces.
	out, err = run(t, r, `ongoing add_bot KareRaisu SEND\s([0-9]+) of pack`)
	if err != nil || out != "Added KareRaisu to XDCC providers list." {
		t.Fatalf("add_bot = %q, %v", out, err)
	}
	bots, _ := store.LoadBots(context.Background())
	if bots["KareRaisu"] != `SEND\s([0-9]+) of pack` {
		t.Fatalf("stored pattern %q", bots["KareRaisu"])
	}

	out, _ = run(t, r, `ongoing add_bot KareRaisu #([0-9]+)`)
	if out != "Updated KareRaisu in XDCC providers list." {
		t.Fatalf("overwrite = %q", out)
	}

	out, err = run(t, r, "ongoing list_bots")
	if err != nil || !strings.Contains(out, "KareRaisu") || !strings.Contains(out, "#([0-9]+)") {
		t.Fatalf("list_bots = %q, %v", out, err)
	}

	out, err = run(t, r, "ongoing del_bot Nobody")
	if !errors.Is(err, admin.ErrNotFound) || out != "There is no bot named Nobody in the list to delete." {
		t.Fatalf("del missing = %q, %v", out, err)
	}
	out, err = run(t, r, "ongoing del_bot KareRaisu")
	if err != nil || out != "KareRaisu has been removed from the list." {
		t.Fatalf("del_bot = %q, %v", out, err)
	}
}

func TestOngoing_FilterLifecycle(t *testing.T) {
	r, store := newTestRegistry(t)

	out, _ := run(t, r, "ongoing list_filters")
	if out != "There are no added file filters." {
		t.Fatalf("empty list = %q", out)
	}
	for _, f := range []string{"A", "Kantai Collection", "C"} {
		if _, err := run(t, r, "ongoing add_filter "+f); err != nil {
			t.Fatalf("add_filter %q: %v", f, err)
		}
	}

	out, err := run(t, r, "ongoing list_filters")
	if err != nil || !strings.Contains(out, "   2  Kantai Collection") {
		t.Fatalf("list_filters = %q, %v", out, err)
	}

	out, err = run(t, r, "ongoing del_filter abc")
	if !errors.Is(err, admin.ErrUsage) || out != "Invalid filter ID abc." {
		t.Fatalf("non-numeric = %q, %v", out, err)
	}
	out, err = run(t, r, "ongoing del_filter 9")
	if !errors.Is(err, admin.ErrNotFound) || out != "There is no filter ID 9 in the list to delete." {
		t.Fatalf("out of range = %q, %v", out, err)
	}
	out, err = run(t, r, "ongoing del_filter 2")
	if err != nil || out != "Kantai Collection has been removed from the list." {
		t.Fatalf("del_filter = %q, %v", out, err)
	}

	filters, _ := store.LoadFilters(context.Background())
	if len(filters) != 2 || filters[0] != "A" || filters[1] != "C" {
		t.Fatalf("filters after delete: %v", filters)
	}
}

func TestOngoing_MalformedInputMutatesNothing(t *testing.T) {
	r, store := newTestRegistry(t)

	cases := []struct {
		text string
		want error
	}{
		{"ongoing add_bot", admin.ErrUsage},
		{"ongoing add_bot OnlyName", admin.ErrUsage},
		{"ongoing del_bot", admin.ErrUsage},
		{"ongoing add_filter", admin.ErrUsage},
		{"ongoing del_filter", admin.ErrUsage},
		{"ongoing add_bot Bad (unclosed", admin.ErrInvalidPattern},
		{`ongoing add_bot NoGroup \d+`, admin.ErrInvalidPattern},
		{"ongoing add_filter [a-", admin.ErrInvalidPattern},
	}
	for _, tc := range cases {
		out, err := run(t, r, tc.text)
		if !errors.Is(err, tc.want) {
			t.Errorf("%q: expected %v, got %v", tc.text, tc.want, err)
		}
		if out == "" {
			t.Errorf("%q: expected a user-visible message", tc.text)
		}
	}

	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Bots) != 0 || len(snap.Filters) != 0 {
		t.Fatalf("malformed commands changed state: %+v", snap)
	}
}

func TestOngoing_UnknownSubcommandAndUsage(t *testing.T) {
	r, _ := newTestRegistry(t)

	out, err := run(t, r, "ongoing frobnicate")
	if !errors.Is(err, ErrUnknownSubcommand) {
		t.Fatalf("expected ErrUnknownSubcommand, got %v", err)
	}
	if !strings.Contains(out, `Unknown subcommand "frobnicate"`) || !strings.Contains(out, "ongoing add_bot <name> <regex>") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = run(t, r, "ongoing")
	if err != nil || !strings.HasPrefix(out, "Usage:") {
		t.Fatalf("bare command = %q, %v", out, err)
	}
}

func TestOngoing_StatsWithoutMonitor(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := run(t, r, "ongoing add_filter x"); err != nil {
		t.Fatalf("add_filter: %v", err)
	}

	out, err := run(t, r, "ongoing stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Channel: #news", "Bots: 0  Filters: 1", "Monitor: not running"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stats missing %q:\n%s", want, out)
		}
	}
}
