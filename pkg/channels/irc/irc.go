// Package irc provides the IRC server connection channel.
package irc

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ongoing/pkg/bus"
	"ongoing/pkg/config"
	ircmsg "ongoing/pkg/irc"
	"ongoing/pkg/logger"
	"ongoing/pkg/version"
)

// ChannelLookup returns the monitored channel so it can be joined on connect.
type ChannelLookup func(ctx context.Context) (string, error)

// Options carries the settings shared by every server connection.
type Options struct {
	ReconnectDelay time.Duration
	ReadTimeout    time.Duration
	CommandPrefix  string // e.g. "!"
	CommandName    string // e.g. "ongoing"
	AllowFrom      []string
	Monitored      ChannelLookup
}

// Dialer opens the raw connection. Tests replace it.
type Dialer func(ctx context.Context) (net.Conn, error)

// Channel is one IRC server connection.
//
// Channel messages become inbound text messages on the bus. Private
// messages from allow-listed nicks that start with the command prefix and
// name become inbound command messages. Outbound bus messages are written
// as PRIVMSG, NOTICE or JOIN lines.
type Channel struct {
	log     *logger.Logger
	config  config.IRCServerConfig
	opts    Options
	bus     bus.Bus
	dial    Dialer
	limiter *rate.Limiter

	allowMu sync.RWMutex
	allow   map[string]bool

	connMu sync.Mutex
	conn   net.Conn
	writer *bufio.Writer
	nick   string

	connected atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewChannel creates an IRC channel for one configured server.
func NewChannel(log *logger.Logger, cfg config.IRCServerConfig, opts Options, b bus.Bus) (*Channel, error) {
	if cfg.Name == "" || cfg.Host == "" || cfg.Nick == "" {
		return nil, fmt.Errorf("irc server needs name, host and nick")
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 30 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Minute
	}

	c := &Channel{
		log:     log.Named("irc").WithFields(zap.String("server", cfg.Name)),
		config:  cfg,
		opts:    opts,
		bus:     b,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 4),
		nick:    cfg.Nick,
	}
	c.dial = c.defaultDial
	c.SetAllowFrom(opts.AllowFrom)
	return c, nil
}

// SetDialer replaces the network dialer.
func (c *Channel) SetDialer(d Dialer) {
	c.dial = d
}

// SetAllowFrom replaces the admin allow-list (case-insensitive nicks).
func (c *Channel) SetAllowFrom(nicks []string) {
	allow := make(map[string]bool, len(nicks))
	for _, n := range nicks {
		if n = strings.TrimSpace(n); n != "" {
			allow[strings.ToLower(n)] = true
		}
	}
	c.allowMu.Lock()
	c.allow = allow
	c.allowMu.Unlock()
}

func (c *Channel) isAllowed(nick string) bool {
	c.allowMu.RLock()
	defer c.allowMu.RUnlock()
	return c.allow[strings.ToLower(nick)]
}

// Settings returns the server config and options the channel was built
// with, after defaults were applied.
func (c *Channel) Settings() (config.IRCServerConfig, Options) {
	return c.config, c.opts
}

// ID returns the bus channel ID.
func (c *Channel) ID() string {
	return bus.IRCChannelID(c.config.Name)
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return "IRC " + c.config.Name
}

// IsEnabled returns whether the server is enabled.
func (c *Channel) IsEnabled() bool {
	return c.config.Enabled
}

// Connected reports whether registration with the server completed.
func (c *Channel) Connected() bool {
	return c.connected.Load()
}

// Start launches the connect/reconnect loop.
func (c *Channel) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		c.run()
	}()
	return nil
}

// Stop sends QUIT and waits for the loop to exit.
func (c *Channel) Stop(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}

	c.connMu.Lock()
	if c.writer != nil {
		_ = c.writeLineLocked(ircmsg.Quit("bye"))
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.cancel()

	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.log.Info("IRC channel stopped")
	return nil
}

func (c *Channel) run() {
	for {
		err := c.session()
		c.connected.Store(false)

		if c.ctx.Err() != nil {
			return
		}
		c.log.Warn("IRC connection lost, reconnecting",
			zap.Error(err),
			zap.Duration("delay", c.opts.ReconnectDelay))

		select {
		case <-time.After(c.opts.ReconnectDelay):
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Channel) defaultDial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: time.Minute}

	if !c.config.TLS {
		return dialer.DialContext(ctx, "tcp", addr)
	}
	td := &tls.Dialer{
		NetDialer: dialer,
		Config: &tls.Config{
			ServerName:         c.config.Host,
			InsecureSkipVerify: c.config.TLSSkipVerify,
			MinVersion:         tls.VersionTLS12,
		},
	}
	return td.DialContext(ctx, "tcp", addr)
}

// session runs one connection until it fails or the channel stops.
func (c *Channel) session() error {
	conn, err := c.dial(c.ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.writer = bufio.NewWriter(conn)
	c.nick = c.config.Nick
	c.connMu.Unlock()

	defer func() {
		c.connMu.Lock()
		conn.Close()
		c.conn = nil
		c.writer = nil
		c.connMu.Unlock()
	}()

	c.log.Info("Connected, registering", zap.String("nick", c.config.Nick))

	if c.config.Password != "" {
		if err := c.writeLine(ircmsg.Pass(c.config.Password)); err != nil {
			return err
		}
	}
	if err := c.writeLine(ircmsg.Nick(c.config.Nick)); err != nil {
		return err
	}
	if err := c.writeLine(ircmsg.User(c.config.User, c.config.RealName)); err != nil {
		return err
	}

	reader := bufio.NewReaderSize(conn, 4096)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
			return err
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		msg, err := ircmsg.Parse(line)
		if err != nil {
			if !errors.Is(err, ircmsg.ErrEmptyLine) {
				c.log.Debug("Ignoring unparsable line", zap.String("line", line), zap.Error(err))
			}
			continue
		}
		if err := c.handle(msg); err != nil {
			return err
		}
	}
}

func (c *Channel) handle(msg *ircmsg.Message) error {
	switch msg.Command {
	case "PING":
		return c.writeLine(ircmsg.Pong(msg.Trailing()))

	case "001":
		c.connected.Store(true)
		c.log.Info("Registered with server")
		return c.joinConfigured()

	case "433": // ERR_NICKNAMEINUSE
		c.connMu.Lock()
		c.nick += "_"
		nick := c.nick
		c.connMu.Unlock()
		c.log.Warn("Nick in use, retrying", zap.String("nick", nick))
		return c.writeLine(ircmsg.Nick(nick))

	case "NICK":
		c.connMu.Lock()
		if strings.EqualFold(msg.Nick(), c.nick) {
			c.nick = msg.Param(0)
		}
		c.connMu.Unlock()

	case "PRIVMSG":
		c.handlePrivmsg(msg)

	case "ERROR":
		return fmt.Errorf("server closed link: %s", msg.Trailing())
	}
	return nil
}

func (c *Channel) joinConfigured() error {
	seen := make(map[string]bool)
	var channels []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		channels = append(channels, name)
	}

	for _, ch := range c.config.Join {
		add(ch)
	}
	if c.opts.Monitored != nil {
		monitored, err := c.opts.Monitored(c.ctx)
		if err != nil {
			c.log.Warn("Could not read monitored channel", zap.Error(err))
		} else {
			add(monitored)
		}
	}

	if len(channels) == 0 {
		return nil
	}
	c.log.Info("Joining channels", zap.Strings("channels", channels))
	return c.writeLine(ircmsg.Join(channels...))
}

func (c *Channel) handlePrivmsg(msg *ircmsg.Message) {
	nick := msg.Nick()
	if nick == "" {
		return
	}
	if msg.IsCTCP() {
		c.handleCTCP(nick, msg.Arguments())
		return
	}

	if channel := msg.Channel(); channel != "" {
		out := bus.NewMessage(c.ID(), bus.MessageTypeText, msg.Arguments())
		out.Server = c.config.Name
		out.Target = channel
		out.Nick = nick
		c.publish(out)
		return
	}

	// Private message to us.
	text := strings.TrimSpace(msg.Arguments())
	command, ok := c.commandText(text)
	if !ok {
		c.log.Debug("Ignoring private message", zap.String("nick", nick))
		return
	}
	if !c.isAllowed(nick) {
		c.log.Warn("Unauthorized admin command", zap.String("nick", nick))
		return
	}

	out := bus.NewMessage(c.ID(), bus.MessageTypeCommand, command)
	out.Server = c.config.Name
	out.Target = nick
	out.Nick = nick
	c.publish(out)
}

// handleCTCP answers VERSION and ignores every other CTCP verb, including
// the DCC offers a bot sends after a request.
func (c *Channel) handleCTCP(nick, body string) {
	verb, _, _ := strings.Cut(strings.Trim(body, "\x01"), " ")
	if !strings.EqualFold(verb, "VERSION") {
		c.log.Debug("Ignoring CTCP", zap.String("nick", nick), zap.String("verb", verb))
		return
	}
	reply := ircmsg.Notice(nick, "\x01VERSION "+version.UserAgent()+"\x01")
	if err := c.writeLine(reply); err != nil {
		c.log.Warn("Failed to answer CTCP VERSION", zap.String("nick", nick), zap.Error(err))
	}
}

// commandText strips the command prefix. "!ongoing add_bot x y" becomes
// "ongoing add_bot x y".
func (c *Channel) commandText(text string) (string, bool) {
	if !strings.HasPrefix(text, c.opts.CommandPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(text, c.opts.CommandPrefix)
	word, _, _ := strings.Cut(rest, " ")
	if !strings.EqualFold(word, c.opts.CommandName) {
		return "", false
	}
	return rest, true
}

func (c *Channel) publish(msg *bus.Message) {
	if err := c.bus.SendInbound(msg); err != nil {
		c.log.Error("Failed to send inbound message", zap.Error(err))
	}
}

// SendMessage writes an outbound bus message.
func (c *Channel) SendMessage(ctx context.Context, msg *bus.Message) error {
	if !c.Connected() {
		return fmt.Errorf("irc %s: not connected", c.config.Name)
	}

	switch msg.Type {
	case bus.MessageTypeJoin:
		return c.writeLineCtx(ctx, ircmsg.Join(msg.Target))
	case bus.MessageTypeNotice:
		for _, line := range ircmsg.SplitText(msg.Target, msg.Content) {
			if err := c.writeLineCtx(ctx, ircmsg.Notice(msg.Target, line)); err != nil {
				return err
			}
		}
		return nil
	default:
		for _, line := range ircmsg.SplitText(msg.Target, msg.Content) {
			if err := c.writeLineCtx(ctx, ircmsg.Privmsg(msg.Target, line)); err != nil {
				return err
			}
		}
		return nil
	}
}

// writeLineCtx waits for the flood limiter before writing.
func (c *Channel) writeLineCtx(ctx context.Context, line string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.writeLine(line)
}

func (c *Channel) writeLine(line string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.writeLineLocked(line)
}

func (c *Channel) writeLineLocked(line string) error {
	if c.writer == nil {
		return fmt.Errorf("irc %s: not connected", c.config.Name)
	}
	if c.conn != nil {
		_ = c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	}
	if _, err := c.writer.WriteString(line + "\r\n"); err != nil {
		return err
	}
	if err := c.writer.Flush(); err != nil {
		return err
	}
	c.log.Debug("Sent line", zap.String("command", strings.SplitN(line, " ", 2)[0]))
	return nil
}
