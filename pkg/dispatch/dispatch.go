// Package dispatch issues the retrieval request for a qualifying message.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ongoing/pkg/bus"
	"ongoing/pkg/logger"
)

// Placeholder is replaced by the identifier in a request template.
const Placeholder = "%s"

// Dispatcher sends one private message per qualifying match. It does not
// wait for, track or retry the transfer; that belongs to the peer.
type Dispatcher struct {
	log      *logger.Logger
	bus      bus.Bus
	mu       sync.RWMutex
	template string
}

// New creates a Dispatcher. template must contain exactly one %s.
func New(log *logger.Logger, b bus.Bus, template string) (*Dispatcher, error) {
	if err := ValidateTemplate(template); err != nil {
		return nil, err
	}
	return &Dispatcher{log: log, bus: b, template: template}, nil
}

// ValidateTemplate checks a request template.
func ValidateTemplate(template string) error {
	if strings.Count(template, Placeholder) != 1 || strings.Count(template, "%") != 1 {
		return fmt.Errorf("request template %q must contain exactly one %s", template, Placeholder)
	}
	return nil
}

// SetTemplate swaps the template, e.g. after a config reload.
func (d *Dispatcher) SetTemplate(template string) error {
	if err := ValidateTemplate(template); err != nil {
		return err
	}
	d.mu.Lock()
	d.template = template
	d.mu.Unlock()
	return nil
}

// Template returns the current template.
func (d *Dispatcher) Template() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.template
}

// Render returns the request text for identifier.
func (d *Dispatcher) Render(identifier string) string {
	return strings.Replace(d.Template(), Placeholder, identifier, 1)
}

// Dispatch submits "PRIVMSG nick :<request>" on server. The error only
// reports whether the submission was accepted.
func (d *Dispatcher) Dispatch(ctx context.Context, server, nick, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if server == "" || nick == "" || identifier == "" {
		return fmt.Errorf("dispatch needs server, nick and identifier (got %q, %q, %q)", server, nick, identifier)
	}

	msg := bus.NewMessage(bus.IRCChannelID(server), bus.MessageTypeText, d.Render(identifier))
	msg.Server = server
	msg.Target = nick
	msg.Data = map[string]interface{}{"identifier": identifier}

	if err := d.bus.SendOutbound(msg); err != nil {
		return fmt.Errorf("submitting request to %s on %s: %w", nick, server, err)
	}

	d.log.Info("Requested pack",
		zap.String("server", server),
		zap.String("nick", nick),
		zap.String("identifier", identifier),
		zap.String("request", msg.Content))
	return nil
}
