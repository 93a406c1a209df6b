package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ongoing/pkg/bus"
	"ongoing/pkg/dispatch"
	"ongoing/pkg/logger"
	"ongoing/pkg/rules"
	"ongoing/pkg/state"
)

type request struct {
	server, nick, identifier string
}

type recordingDispatcher struct {
	mu       sync.Mutex
	requests []request
	err      error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, server, nick, identifier string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.requests = append(d.requests, request{server, nick, identifier})
	return nil
}

func (d *recordingDispatcher) all() []request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]request(nil), d.requests...)
}

func newTestMonitor(t *testing.T, d Dispatcher) (*Monitor, *rules.Store) {
	t.Helper()

	log := logger.NewNop()
	kv, err := state.NewFileStore(log, filepath.Join(t.TempDir(), "rules.json"))
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	store := rules.NewStore(log, kv, "#news")
	matcher, err := rules.NewMatcher(log, 16)
	if err != nil {
		t.Fatalf("matcher: %v", err)
	}

	ctx := context.Background()
	if err := store.SaveBots(ctx, map[string]string{"KareRaisu": `SEND\s([0-9]+)`}); err != nil {
		t.Fatalf("save bots: %v", err)
	}
	if err := store.SaveFilters(ctx, []string{"Kantai.*720p"}); err != nil {
		t.Fatalf("save filters: %v", err)
	}

	return New(log, store, matcher, d), store
}

func TestProcess_EndToEndScenario(t *testing.T) {
	d := &recordingDispatcher{}
	m, _ := newTestMonitor(t, d)
	ctx := context.Background()

	events := []rules.InboundEvent{
		{Server: "rizon", Channel: "#news", Nick: "KareRaisu", Arguments: "!list Kantai Collection 720p SEND 42"},
		{Server: "rizon", Channel: "#other", Nick: "KareRaisu", Arguments: "!list Kantai Collection 720p SEND 42"},
		{Server: "rizon", Channel: "#news", Nick: "OtherBot", Arguments: "!list Kantai Collection 720p SEND 42"},
		{Server: "rizon", Channel: "#news", Nick: "KareRaisu", Arguments: "Kantai 1080p SEND 42"},
	}
	for _, ev := range events {
		if _, err := m.Process(ctx, ev); err != nil {
			t.Fatalf("process %+v: %v", ev, err)
		}
	}

	got := d.all()
	if len(got) != 1 {
		t.Fatalf("expected exactly one dispatch, got %v", got)
	}
	if got[0] != (request{"rizon", "KareRaisu", "42"}) {
		t.Fatalf("unexpected dispatch %+v", got[0])
	}

	stats := m.Stats()
	if stats.Seen != 4 || stats.Dispatched != 1 || stats.WrongChannel != 1 || stats.UnknownNick != 1 || stats.NoFilter != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.LastDispatch == nil || stats.LastDispatch.Identifier != "42" || stats.LastDispatch.Filter != "Kantai.*720p" {
		t.Fatalf("unexpected last dispatch %+v", stats.LastDispatch)
	}
}

func TestProcess_SeesAdminEditsImmediately(t *testing.T) {
	d := &recordingDispatcher{}
	m, store := newTestMonitor(t, d)
	ctx := context.Background()

	ev := rules.InboundEvent{Server: "rizon", Channel: "#anime", Nick: "KareRaisu", Arguments: "Kantai 720p SEND 9"}
	if _, err := m.Process(ctx, ev); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(d.all()) != 0 {
		t.Fatalf("expected no dispatch before channel change")
	}

	if err := store.SetChannel(ctx, "#Anime"); err != nil {
		t.Fatalf("set channel: %v", err)
	}
	if _, err := m.Process(ctx, ev); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := d.all(); len(got) != 1 || got[0].identifier != "9" {
		t.Fatalf("expected dispatch after channel change, got %v", got)
	}
}

func TestProcess_InvalidStoredPatternFailsOnlyThatMessage(t *testing.T) {
	d := &recordingDispatcher{}
	m, store := newTestMonitor(t, d)
	ctx := context.Background()

	if err := store.SaveBots(ctx, map[string]string{
		"KareRaisu": `SEND\s([0-9]+)`,
		"Broken":    `SEND (`,
	}); err != nil {
		t.Fatalf("save bots: %v", err)
	}

	_, err := m.Process(ctx, rules.InboundEvent{Server: "rizon", Channel: "#news", Nick: "Broken", Arguments: "Kantai 720p SEND 1"})
	if !errors.Is(err, rules.ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}

	if _, err := m.Process(ctx, rules.InboundEvent{Server: "rizon", Channel: "#news", Nick: "KareRaisu", Arguments: "Kantai 720p SEND 2"}); err != nil {
		t.Fatalf("next message must still process: %v", err)
	}
	if got := d.all(); len(got) != 1 || got[0].identifier != "2" {
		t.Fatalf("unexpected dispatches %v", got)
	}
	if m.Stats().Errors != 1 {
		t.Fatalf("expected one error counted, got %d", m.Stats().Errors)
	}
}

func TestProcess_DispatchFailureIsCounted(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("bus down")}
	m, _ := newTestMonitor(t, d)

	_, err := m.Process(context.Background(), rules.InboundEvent{Server: "rizon", Channel: "#news", Nick: "KareRaisu", Arguments: "Kantai 720p SEND 3"})
	if err == nil {
		t.Fatalf("expected dispatch error")
	}
	stats := m.Stats()
	if stats.Errors != 1 || stats.Dispatched != 0 || stats.LastDispatch != nil {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestHandleMessage_ThroughBus(t *testing.T) {
	log := logger.NewNop()
	b := bus.NewLocalBus(log, 10)
	if err := b.Start(); err != nil {
		t.Fatalf("bus start: %v", err)
	}
	defer b.Stop()

	d, err := dispatch.New(log, b, "xdcc send %s")
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	m, _ := newTestMonitor(t, d)
	b.RegisterInboundHandler(m.HandleMessage)

	requests := make(chan *bus.Message, 2)
	b.RegisterHandler(bus.IRCChannelID("rizon"), func(ctx context.Context, msg *bus.Message) error {
		requests <- msg
		return nil
	})

	// Command messages are not for the monitor.
	cmd := bus.NewMessage(bus.IRCChannelID("rizon"), bus.MessageTypeCommand, "ongoing stats")
	cmd.Server, cmd.Nick = "rizon", "admin"
	if err := b.SendInbound(cmd); err != nil {
		t.Fatalf("send: %v", err)
	}

	in := bus.NewMessage(bus.IRCChannelID("rizon"), bus.MessageTypeText, "!list Kantai Collection 720p SEND 42")
	in.Server, in.Target, in.Nick = "rizon", "#news", "KareRaisu"
	if err := b.SendInbound(in); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case out := <-requests:
		if out.Target != "KareRaisu" || out.Content != "xdcc send 42" {
			t.Fatalf("unexpected request %+v", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for request")
	}

	if seen := m.Stats().Seen; seen != 1 {
		t.Fatalf("expected only the text message to be processed, seen=%d", seen)
	}
}
