package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/db"
	"github.com/Maciej19820502/windykacja/internal/transport"
)

// ProtectedSender wraps a channel sender with a CircuitBreaker. A breaker
// rejection is an ordinary transport failure: the dispatcher logs a failed
// correspondence record and the next eligible tick retries naturally.
type ProtectedSender struct {
	sender  transport.Sender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedSender wraps a sender with circuit breaker protection.
func NewProtectedSender(sender transport.Sender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedSender {
	return &ProtectedSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

// Send attempts delivery through the circuit breaker. With the circuit open
// it returns ErrCircuitOpen immediately.
func (p *ProtectedSender) Send(ctx context.Context, msg *transport.Message) error {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected send",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("channel", string(msg.Channel)),
			zap.String("state", p.breaker.GetState().String()),
		)
		return fmt.Errorf("%w: %s sender unavailable", ErrCircuitOpen, p.breaker.config.Name)
	}

	err := p.sender.Send(ctx, msg)
	if err != nil {
		p.breaker.RecordFailure()
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// SupportsChannel delegates to the underlying sender.
func (p *ProtectedSender) SupportsChannel(channel db.Channel) bool {
	return p.sender.SupportsChannel(channel)
}

// Breaker returns the underlying circuit breaker for monitoring.
func (p *ProtectedSender) Breaker() *CircuitBreaker {
	return p.breaker
}
