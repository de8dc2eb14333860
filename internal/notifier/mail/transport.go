package mail

import (
	"context"
	"errors"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

// Transport delivers one rendered notification. A nil return means
// delivered. Implementations classify failures by wrapping ErrRetryable
// (worth another attempt: connection refused, timeouts, greylisting) or
// ErrPermanent (bad recipient, rendering problems).
type Transport interface {
	Send(ctx context.Context, event *domain.NotificationEvent) error
}

var (
	ErrRetryable = errors.New("transient mail failure")
	ErrPermanent = errors.New("permanent mail failure")
)

// IsRetryable reports whether the dispatcher should try again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}
