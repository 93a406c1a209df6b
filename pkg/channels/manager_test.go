package channels

import (
	"context"
	"sync"
	"testing"
	"time"

	"ongoing/pkg/bus"
	"ongoing/pkg/config"
	"ongoing/pkg/logger"
)

type fakeChannel struct {
	id      string
	enabled bool

	mu      sync.Mutex
	started bool
	stopped bool
	sent    []*bus.Message
	got     chan *bus.Message
}

func newFakeChannel(id string, enabled bool) *fakeChannel {
	return &fakeChannel{id: id, enabled: enabled, got: make(chan *bus.Message, 10)}
}

func (f *fakeChannel) ID() string      { return f.id }
func (f *fakeChannel) Name() string    { return f.id }
func (f *fakeChannel) IsEnabled() bool { return f.enabled }

func (f *fakeChannel) Start(ctx context.Context) error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) SendMessage(ctx context.Context, msg *bus.Message) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	f.got <- msg
	return nil
}

func TestManager_RoutesOutboundAndJoins(t *testing.T) {
	log := logger.NewNop()
	b := bus.NewLocalBus(log, 10)
	if err := b.Start(); err != nil {
		t.Fatalf("bus start: %v", err)
	}
	defer b.Stop()

	m := NewManager(log, b)
	rizon := newFakeChannel("irc:rizon", true)
	off := newFakeChannel("irc:off", false)
	if err := m.Register(rizon); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(off); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(rizon); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	out := bus.NewMessage("irc:rizon", bus.MessageTypeText, "xdcc send 1")
	out.Target = "bot"
	if err := b.SendOutbound(out); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case got := <-rizon.got:
		if got.Content != "xdcc send 1" {
			t.Fatalf("unexpected message %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for outbound routing")
	}

	if err := m.JoinAll("#releases"); err != nil {
		t.Fatalf("join all: %v", err)
	}
	select {
	case got := <-rizon.got:
		if got.Type != bus.MessageTypeJoin || got.Target != "#releases" {
			t.Fatalf("unexpected join message %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for join")
	}

	if len(m.GetEnabledChannels()) != 1 {
		t.Fatalf("expected one enabled channel")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	rizon.mu.Lock()
	defer rizon.mu.Unlock()
	if !rizon.started || !rizon.stopped {
		t.Fatalf("expected channel to be started and stopped")
	}
	off.mu.Lock()
	defer off.mu.Unlock()
	if off.started {
		t.Fatalf("disabled channel must not start")
	}
}

func TestBuildIRCChannels(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.IRC.Servers = []config.IRCServerConfig{
		{Name: "rizon", Enabled: true, Host: "irc.rizon.net", Port: 6697, TLS: true, Nick: "fetcher"},
		{Name: "off", Enabled: false, Host: "irc.example.net", Nick: "x"},
	}

	log := logger.NewNop()
	chans, err := BuildIRCChannels(log, bus.NewLocalBus(log, 1), cfg, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(chans) != 1 || chans[0].ID() != "irc:rizon" {
		t.Fatalf("expected only irc:rizon, got %d channels", len(chans))
	}

	opts := IRCOptions(cfg, nil)
	if opts.CommandPrefix != "!" || opts.CommandName != "ongoing" || opts.ReconnectDelay != 30*time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}

// storedChannel stands in for the rule store that another process edits.
type storedChannel struct {
	mu   sync.Mutex
	name string
}

func (s *storedChannel) set(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *storedChannel) lookup(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name, nil
}

func startedManager(t *testing.T) (*Manager, *fakeChannel) {
	t.Helper()
	log := logger.NewNop()
	b := bus.NewLocalBus(log, 10)
	if err := b.Start(); err != nil {
		t.Fatalf("bus start: %v", err)
	}
	t.Cleanup(func() { _ = b.Stop() })

	m := NewManager(log, b)
	ch := newFakeChannel("irc:rizon", true)
	if err := m.Register(ch); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop() })
	return m, ch
}

func expectJoin(t *testing.T, ch *fakeChannel, want string) {
	t.Helper()
	select {
	case got := <-ch.got:
		if got.Type != bus.MessageTypeJoin || got.Target != want {
			t.Fatalf("expected join %s, got %+v", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for join %s", want)
	}
}

func expectNothing(t *testing.T, ch *fakeChannel) {
	t.Helper()
	select {
	case got := <-ch.got:
		t.Fatalf("unexpected outbound message %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFollower_JoinsChannelChangedElsewhere(t *testing.T) {
	m, ch := startedManager(t)
	stored := &storedChannel{name: "#news"}

	f := NewFollower(logger.NewNop(), m, stored.lookup, 0)
	ctx := context.Background()
	if err := f.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer f.Stop()

	// Already joined on registration.
	f.Check(ctx)
	expectNothing(t, ch)

	stored.set("#anime")
	f.Check(ctx)
	expectJoin(t, ch, "#anime")

	// The admin hook in this process reports the same change again.
	if err := f.Observe("#ANIME"); err != nil {
		t.Fatalf("observe: %v", err)
	}
	f.Check(ctx)
	expectNothing(t, ch)

	if err := f.Observe("#releases"); err != nil {
		t.Fatalf("observe: %v", err)
	}
	expectJoin(t, ch, "#releases")
}

func TestFollower_Polls(t *testing.T) {
	m, ch := startedManager(t)
	stored := &storedChannel{name: "#news"}

	f := NewFollower(logger.NewNop(), m, stored.lookup, 10*time.Millisecond)
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer f.Stop()

	stored.set("#anime")
	expectJoin(t, ch, "#anime")
}

func TestApplyServers(t *testing.T) {
	log := logger.NewNop()
	b := bus.NewLocalBus(log, 10)
	if err := b.Start(); err != nil {
		t.Fatalf("bus start: %v", err)
	}
	defer b.Stop()

	// Nothing listens on port 1: connections fail fast and wait to retry.
	server := func(name string, port int) config.IRCServerConfig {
		return config.IRCServerConfig{Name: name, Enabled: true, Host: "127.0.0.1", Port: port, Nick: "fetcher"}
	}
	cfg := config.DefaultConfig()
	cfg.IRC.ReconnectSeconds = 3600
	cfg.IRC.Servers = []config.IRCServerConfig{server("a", 1), server("b", 1), server("d", 1)}

	m := NewManager(log, b)
	chans, err := BuildIRCChannels(log, b, cfg, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, ch := range chans {
		if err := m.Register(ch); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()

	before := map[string]Channel{}
	for _, id := range []string{"irc:a", "irc:b"} {
		ch, err := m.GetChannel(id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		before[id] = ch
	}

	next := config.DefaultConfig()
	next.IRC.ReconnectSeconds = 3600
	next.Admin.AllowFrom = []string{"admin"}
	next.IRC.Servers = []config.IRCServerConfig{server("a", 1), server("b", 2), server("c", 1)}

	if err := ApplyServers(m, log, b, next, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if ch, _ := m.GetChannel("irc:a"); ch != before["irc:a"] {
		t.Fatal("unchanged server must keep its connection")
	}
	if ch, err := m.GetChannel("irc:b"); err != nil || ch == before["irc:b"] {
		t.Fatalf("changed server must be rebuilt, err=%v", err)
	}
	if _, err := m.GetChannel("irc:c"); err != nil {
		t.Fatalf("new server must be added: %v", err)
	}
	if _, err := m.GetChannel("irc:d"); err == nil {
		t.Fatal("removed server must be stopped")
	}
	if n := len(m.ListChannels()); n != 3 {
		t.Fatalf("expected 3 channels, got %d", n)
	}
}
