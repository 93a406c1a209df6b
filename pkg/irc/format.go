package irc

import (
	"strings"
	"unicode/utf8"
)

// sanitize drops characters that would end or split a line.
func sanitize(s string) string {
	if !strings.ContainsAny(s, "\r\n\x00") {
		return s
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '\x00':
			return -1
		}
		return r
	}, s)
}

// Privmsg formats "PRIVMSG target :text".
func Privmsg(target, text string) string {
	return "PRIVMSG " + sanitize(target) + " :" + sanitize(text)
}

// Notice formats "NOTICE target :text".
func Notice(target, text string) string {
	return "NOTICE " + sanitize(target) + " :" + sanitize(text)
}

// Join formats a JOIN for one or more channels.
func Join(channels ...string) string {
	return "JOIN " + sanitize(strings.Join(channels, ","))
}

// Pong answers a PING with the same token.
func Pong(token string) string {
	return "PONG :" + sanitize(token)
}

// Nick formats "NICK nick".
func Nick(nick string) string {
	return "NICK " + sanitize(nick)
}

// User formats the registration USER line.
func User(user, realname string) string {
	return "USER " + sanitize(user) + " 0 * :" + sanitize(realname)
}

// Pass formats "PASS password".
func Pass(password string) string {
	return "PASS " + sanitize(password)
}

// Quit formats "QUIT :reason".
func Quit(reason string) string {
	return "QUIT :" + sanitize(reason)
}

// SplitText breaks text so that each "PRIVMSG target :" line fits in the
// protocol limit. Splits prefer spaces.
func SplitText(target, text string) []string {
	limit := MaxLineLength - len("PRIVMSG  :\r\n") - len(target) - 64 // room for the server-added prefix
	if limit < 32 {
		limit = 32
	}

	var out []string
	for _, line := range strings.Split(sanitizeKeepNewlines(text), "\n") {
		for len(line) > limit {
			cut := strings.LastIndexByte(line[:limit], ' ')
			if cut <= 0 {
				cut = limit
				for cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
			}
			out = append(out, line[:cut])
			line = strings.TrimLeft(line[cut:], " ")
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func sanitizeKeepNewlines(s string) string {
	return strings.NewReplacer("\r", "", "\x00", "").Replace(s)
}
