package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/db"
	"github.com/Maciej19820502/windykacja/internal/transport"
)

func testBreaker(maxFailures int, recovery time.Duration) *CircuitBreaker {
	return New(Config{
		Name:                "test",
		MaxFailures:         maxFailures,
		RecoveryTimeout:     recovery,
		HalfOpenMaxRequests: 1,
	}, zap.NewNop())
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := testBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("state = %s after 2 failures, want closed", cb.GetState())
	}

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s after 3 failures, want open", cb.GetState())
	}
	if cb.Allow() {
		t.Error("open breaker allowed a request")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := testBreaker(3, time.Minute)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.GetState() != StateClosed {
		t.Errorf("state = %s, want closed (failures are consecutive)", cb.GetState())
	}
}

func TestBreakerRecoveryProbe(t *testing.T) {
	cb := testBreaker(1, 10*time.Millisecond)

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s, want open", cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)

	// First request after the recovery timeout is the probe.
	if !cb.Allow() {
		t.Fatal("probe request rejected after recovery timeout")
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("state = %s, want half-open", cb.GetState())
	}
	// Only one probe at a time.
	if cb.Allow() {
		t.Error("second concurrent probe allowed")
	}

	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Errorf("state = %s after probe success, want closed", cb.GetState())
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	cb := testBreaker(1, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("probe rejected")
	}

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Errorf("state = %s after probe failure, want open", cb.GetState())
	}
}

type flakySender struct {
	failure error
	sent    int
}

func (s *flakySender) Send(context.Context, *transport.Message) error {
	if s.failure != nil {
		return s.failure
	}
	s.sent++
	return nil
}

func (s *flakySender) SupportsChannel(channel db.Channel) bool {
	return channel == db.ChannelEmail
}

func TestProtectedSenderTripsAndRejects(t *testing.T) {
	inner := &flakySender{failure: errors.New("ses down")}
	cb := testBreaker(2, time.Minute)
	sender := NewProtectedSender(inner, cb, zap.NewNop())
	msg := &transport.Message{Channel: db.ChannelEmail, Recipient: "a@b.pl", Body: "x"}

	for i := 0; i < 2; i++ {
		if err := sender.Send(context.Background(), msg); err == nil {
			t.Fatal("expected transport failure")
		}
	}

	err := sender.Send(context.Background(), msg)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}

	if !sender.SupportsChannel(db.ChannelEmail) || sender.SupportsChannel(db.ChannelSMS) {
		t.Error("SupportsChannel does not delegate")
	}
}

func TestProtectedSenderPassesThrough(t *testing.T) {
	inner := &flakySender{}
	sender := NewProtectedSender(inner, testBreaker(2, time.Minute), zap.NewNop())

	msg := &transport.Message{Channel: db.ChannelEmail, Recipient: "a@b.pl", Body: "x"}
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if inner.sent != 1 {
		t.Errorf("sent = %d, want 1", inner.sent)
	}
	if sender.Breaker().GetState() != StateClosed {
		t.Errorf("state = %s", sender.Breaker().GetState())
	}
}
