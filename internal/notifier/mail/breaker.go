package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

// BreakerTransport wraps another transport in a circuit breaker so a dead
// SMTP server sheds load quickly instead of making every worker wait out
// its timeout. A rejected send is transient from the dispatcher's point
// of view.
type BreakerTransport struct {
	inner Transport
	cb    *gobreaker.CircuitBreaker[any]
}

func NewBreakerTransport(inner Transport) *BreakerTransport {
	settings := gobreaker.Settings{
		Name:    "mail-transport",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Permanent failures are the recipient's problem, not the
			// server's; they must not trip the breaker.
			return err == nil || errors.Is(err, ErrPermanent)
		},
	}
	return &BreakerTransport{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *BreakerTransport) Send(ctx context.Context, event *domain.NotificationEvent) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.Send(ctx, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("mail transport unavailable: %w: %v", ErrRetryable, err)
	}
	return err
}
