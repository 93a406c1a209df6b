// Package irc parses and formats IRC protocol lines (RFC 1459 with IRCv3
// message tags).
package irc

import (
	"errors"
	"strings"
)

// MaxLineLength is the protocol limit for one line including CRLF.
const MaxLineLength = 512

var (
	// ErrEmptyLine is returned for a blank line.
	ErrEmptyLine = errors.New("irc: empty line")
	// ErrNoCommand is returned when a line has a prefix or tags but no command.
	ErrNoCommand = errors.New("irc: missing command")
)

// Prefix is the message source, "nick!user@host" or a server name.
type Prefix struct {
	Nick string
	User string
	Host string
}

// String formats the prefix back to wire form.
func (p Prefix) String() string {
	var sb strings.Builder
	sb.WriteString(p.Nick)
	if p.User != "" {
		sb.WriteString("!")
		sb.WriteString(p.User)
	}
	if p.Host != "" {
		sb.WriteString("@")
		sb.WriteString(p.Host)
	}
	return sb.String()
}

// ParsePrefix splits "nick!user@host". A bare server name lands in Nick.
func ParsePrefix(raw string) Prefix {
	var p Prefix
	if i := strings.IndexByte(raw, '@'); i >= 0 {
		p.Host = raw[i+1:]
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '!'); i >= 0 {
		p.User = raw[i+1:]
		raw = raw[:i]
	}
	p.Nick = raw
	return p
}

// Message is one parsed protocol line.
type Message struct {
	Tags    map[string]string
	Prefix  *Prefix
	Command string
	Params  []string
}

// Parse parses a single line. Trailing CR/LF is ignored.
func Parse(line string) (*Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, ErrEmptyLine
	}

	msg := &Message{}

	if strings.HasPrefix(line, "@") {
		raw, rest, _ := strings.Cut(line[1:], " ")
		msg.Tags = parseTags(raw)
		line = strings.TrimLeft(rest, " ")
	}

	if strings.HasPrefix(line, ":") {
		raw, rest, _ := strings.Cut(line[1:], " ")
		p := ParsePrefix(raw)
		msg.Prefix = &p
		line = strings.TrimLeft(rest, " ")
	}

	command, rest, _ := strings.Cut(line, " ")
	if command == "" {
		return nil, ErrNoCommand
	}
	msg.Command = strings.ToUpper(command)

	for rest != "" {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}
		if rest[0] == ':' {
			msg.Params = append(msg.Params, rest[1:])
			break
		}
		var param string
		param, rest, _ = strings.Cut(rest, " ")
		msg.Params = append(msg.Params, param)
	}

	return msg, nil
}

func parseTags(raw string) map[string]string {
	tags := make(map[string]string)
	for _, tag := range strings.Split(raw, ";") {
		if tag == "" {
			continue
		}
		key, value, _ := strings.Cut(tag, "=")
		tags[key] = unescapeTagValue(value)
	}
	return tags
}

var tagUnescaper = strings.NewReplacer(
	`\:`, ";",
	`\s`, " ",
	`\\`, `\`,
	`\r`, "\r",
	`\n`, "\n",
)

func unescapeTagValue(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	return tagUnescaper.Replace(v)
}

// Param returns the i-th parameter or "".
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Trailing returns the last parameter.
func (m *Message) Trailing() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

// Nick returns the sender nick, or "" for server-originated lines.
func (m *Message) Nick() string {
	if m.Prefix == nil {
		return ""
	}
	return m.Prefix.Nick
}

// Channel returns the target of a PRIVMSG/NOTICE when it is a channel.
func (m *Message) Channel() string {
	target := m.Param(0)
	if IsChannel(target) {
		return target
	}
	return ""
}

// Arguments returns the message body of a PRIVMSG/NOTICE.
func (m *Message) Arguments() string {
	if len(m.Params) < 2 {
		return ""
	}
	return m.Trailing()
}

// IsCTCP reports whether the body is a CTCP request (\x01...\x01).
func (m *Message) IsCTCP() bool {
	body := m.Arguments()
	return len(body) >= 2 && body[0] == '\x01'
}

// String formats the message back to wire form without CRLF.
func (m *Message) String() string {
	var sb strings.Builder
	if m.Prefix != nil {
		sb.WriteString(":")
		sb.WriteString(m.Prefix.String())
		sb.WriteString(" ")
	}
	sb.WriteString(m.Command)
	for i, p := range m.Params {
		sb.WriteString(" ")
		if i == len(m.Params)-1 && (p == "" || strings.ContainsRune(p, ' ') || p[0] == ':') {
			sb.WriteString(":")
		}
		sb.WriteString(p)
	}
	return sb.String()
}

// IsChannel reports whether name is a channel name.
func IsChannel(name string) bool {
	if name == "" {
		return false
	}
	switch name[0] {
	case '#', '&', '+', '!':
		return true
	}
	return false
}
