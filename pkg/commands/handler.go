package commands

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"ongoing/pkg/bus"
	"ongoing/pkg/logger"
)

// BusHandler runs admin commands that arrive on the bus and replies to the
// sender with one NOTICE per response line.
type BusHandler struct {
	log      *logger.Logger
	registry *Registry
	bus      bus.Bus
}

// NewBusHandler creates a BusHandler.
func NewBusHandler(log *logger.Logger, registry *Registry, b bus.Bus) *BusHandler {
	return &BusHandler{
		log:      log.Named("commands"),
		registry: registry,
		bus:      b,
	}
}

// HandleMessage implements bus.Handler. Messages other than commands are
// ignored. Command failures are reported to the sender, not returned.
func (h *BusHandler) HandleMessage(ctx context.Context, msg *bus.Message) error {
	if msg.Type != bus.MessageTypeCommand {
		return nil
	}

	req := CommandRequest{
		Source: "irc",
		Server: msg.Server,
		Nick:   msg.Nick,
	}
	resp, err := h.registry.Execute(ctx, req, msg.Content)
	if err != nil {
		h.log.Info("Command reported a problem",
			zap.String("server", msg.Server),
			zap.String("nick", msg.Nick),
			zap.String("command", msg.Content),
			zap.Error(err))
	} else {
		h.log.Info("Command executed",
			zap.String("server", msg.Server),
			zap.String("nick", msg.Nick),
			zap.String("command", msg.Content))
	}

	replyTo := msg.Nick
	if replyTo == "" {
		replyTo = msg.Target
	}
	var sendErr error
	for _, line := range resp.Lines() {
		reply := bus.NewMessage(msg.ChannelID, bus.MessageTypeNotice, line)
		reply.Server = msg.Server
		reply.Target = replyTo
		if err := h.bus.SendOutbound(reply); err != nil {
			sendErr = errors.Join(sendErr, err)
		}
	}
	return sendErr
}
