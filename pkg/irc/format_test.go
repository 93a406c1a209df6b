package irc

import (
	"strings"
	"testing"
)

func TestFormatters(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Privmsg("KareRaisu", "xdcc send 42"), "PRIVMSG KareRaisu :xdcc send 42"},
		{Notice("admin", "ok"), "NOTICE admin :ok"},
		{Join("#news", "#anime"), "JOIN #news,#anime"},
		{Pong("irc.rizon.net"), "PONG :irc.rizon.net"},
		{User("fetcher", "Fetcher Bot"), "USER fetcher 0 * :Fetcher Bot"},
		{Privmsg("x", "a\r\nQUIT"), "PRIVMSG x :aQUIT"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestSplitText(t *testing.T) {
	lines := SplitText("admin", "one\ntwo\n\nthree")
	if strings.Join(lines, "|") != "one|two|three" {
		t.Fatalf("unexpected split %q", lines)
	}

	long := strings.Repeat("word ", 200)
	for _, l := range SplitText("admin", long) {
		if len(Privmsg("admin", l))+2 > MaxLineLength {
			t.Fatalf("line too long: %d", len(l))
		}
	}
}
