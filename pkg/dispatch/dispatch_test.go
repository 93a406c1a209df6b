package dispatch

import (
	"context"
	"testing"
	"time"

	"ongoing/pkg/bus"
	"ongoing/pkg/logger"
)

func TestDispatch_SendsPrivmsgToBotOnServer(t *testing.T) {
	b := bus.NewLocalBus(logger.NewNop(), 4)
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop()

	got := make(chan *bus.Message, 2)
	b.RegisterHandler(bus.IRCChannelID("rizon"), func(ctx context.Context, msg *bus.Message) error {
		got <- msg
		return nil
	})

	d, err := New(logger.NewNop(), b, "xdcc send %s")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := d.Dispatch(context.Background(), "rizon", "KareRaisu", "42"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	select {
	case msg := <-got:
		if msg.Target != "KareRaisu" || msg.Content != "xdcc send 42" || msg.Server != "rizon" {
			t.Fatalf("unexpected outbound message %+v", msg)
		}
		if msg.Type != bus.MessageTypeText {
			t.Fatalf("expected a PRIVMSG text message, got %s", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for outbound message")
	}

	select {
	case msg := <-got:
		t.Fatalf("expected exactly one request, got another %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTemplateValidation(t *testing.T) {
	tests := []struct {
		template string
		ok       bool
	}{
		{"xdcc send %s", true},
		{"XDCC SEND #%s", true},
		{"xdcc send", false},
		{"%s %s", false},
		{"xdcc send %d", false},
		{"100% %s", false},
	}
	for _, tt := range tests {
		err := ValidateTemplate(tt.template)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateTemplate(%q) = %v, want ok=%v", tt.template, err, tt.ok)
		}
	}
}

func TestSetTemplate(t *testing.T) {
	b := bus.NewLocalBus(logger.NewNop(), 1)
	d, err := New(logger.NewNop(), b, "xdcc send %s")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := d.SetTemplate("xdcc batch %s"); err != nil {
		t.Fatalf("set template: %v", err)
	}
	if got := d.Render("7"); got != "xdcc batch 7" {
		t.Fatalf("unexpected render %q", got)
	}
	if err := d.SetTemplate("broken"); err == nil {
		t.Fatalf("expected invalid template to be rejected")
	}
	if got := d.Render("7"); got != "xdcc batch 7" {
		t.Fatalf("rejected template must not replace the current one, got %q", got)
	}
}

func TestDispatch_RejectsEmptyFields(t *testing.T) {
	d, err := New(logger.NewNop(), bus.NewLocalBus(logger.NewNop(), 1), "xdcc send %s")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := d.Dispatch(context.Background(), "rizon", "KareRaisu", ""); err == nil {
		t.Fatalf("expected error for empty identifier")
	}
}
