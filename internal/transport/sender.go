// Package transport delivers rendered dunning messages over email and SMS.
package transport

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/db"
)

// Message is one rendered message ready for delivery. Subject is empty for
// SMS.
type Message struct {
	Channel   db.Channel
	Recipient string
	Subject   string
	Body      string
}

// Sender is the unified interface for all delivery channels.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
	SupportsChannel(channel db.Channel) bool
}

// Router dispatches a message to the first sender supporting its channel.
type Router struct {
	senders []Sender
	logger  *zap.Logger
}

// NewRouter creates a router over the given channel senders.
func NewRouter(logger *zap.Logger, senders ...Sender) *Router {
	return &Router{
		senders: senders,
		logger:  logger,
	}
}

// Send routes the message to the appropriate sender based on channel.
func (r *Router) Send(ctx context.Context, msg *Message) error {
	for _, sender := range r.senders {
		if sender.SupportsChannel(msg.Channel) {
			r.logger.Debug("routing message to sender",
				zap.String("channel", string(msg.Channel)),
				zap.String("recipient", msg.Recipient),
			)
			return sender.Send(ctx, msg)
		}
	}
	return fmt.Errorf("no sender found for channel: %s", msg.Channel)
}

// SupportsChannel checks if any underlying sender supports the channel.
func (r *Router) SupportsChannel(channel db.Channel) bool {
	for _, sender := range r.senders {
		if sender.SupportsChannel(channel) {
			return true
		}
	}
	return false
}

// LogSender logs messages instead of delivering them (development mode).
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	s.logger.Info("logging message (development mode)",
		zap.String("channel", string(msg.Channel)),
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func (s *LogSender) SupportsChannel(channel db.Channel) bool {
	return channel.Valid()
}
