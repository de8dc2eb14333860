package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

func statusChangedEvent(t *testing.T, recipient string) *domain.NotificationEvent {
	t.Helper()
	payload := domain.StatusChangedPayload{
		OrderID:        uuid.New(),
		SubOrderID:     uuid.New(),
		SupplierID:     1,
		SupplierName:   "Acme",
		RecipientEmail: recipient,
		OldStatus:      domain.StatusPending,
		NewStatus:      domain.StatusConfirmed,
		ChangedAt:      time.Now(),
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &domain.NotificationEvent{
		ID:      uuid.New(),
		Kind:    domain.EventStatusChanged,
		Target:  domain.TargetCustomer,
		Payload: data,
	}
}

func TestSMTPSend_Success(t *testing.T) {
	var gotTo []string
	var gotMsg []byte
	sut := &SMTPTransport{
		cfg: SMTPConfig{Host: "mail.local", Port: "25", From: "orders@shop.local"},
		send: func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			assert.Equal(t, "mail.local:25", addr)
			assert.Equal(t, "orders@shop.local", from)
			gotTo = to
			gotMsg = msg
			return nil
		},
	}

	err := sut.Send(context.Background(), statusChangedEvent(t, "alice@example.com"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Order ")
	assert.Contains(t, string(gotMsg), "Acme")
}

func TestSMTPSend_MissingRecipientIsPermanent(t *testing.T) {
	sut := &SMTPTransport{
		cfg: SMTPConfig{Host: "mail.local", Port: "25"},
		send: func(string, smtp.Auth, string, []string, []byte) error {
			t.Fatal("send should not be reached")
			return nil
		},
	}

	err := sut.Send(context.Background(), statusChangedEvent(t, ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermanent)
	assert.False(t, IsRetryable(err))
}

func TestSMTPSend_NetworkErrorIsRetryable(t *testing.T) {
	sut := &SMTPTransport{
		cfg: SMTPConfig{Host: "mail.local", Port: "25"},
		send: func(string, smtp.Auth, string, []string, []byte) error {
			return &net.OpError{Op: "dial", Err: fmt.Errorf("connection refused")}
		},
	}

	err := sut.Send(context.Background(), statusChangedEvent(t, "alice@example.com"))
	assert.True(t, IsRetryable(err))
}

func TestSMTPSend_4xxIsRetryable(t *testing.T) {
	sut := &SMTPTransport{
		cfg: SMTPConfig{Host: "mail.local", Port: "25"},
		send: func(string, smtp.Auth, string, []string, []byte) error {
			return &textproto.Error{Code: 451, Msg: "greylisted, try again later"}
		},
	}

	err := sut.Send(context.Background(), statusChangedEvent(t, "alice@example.com"))
	assert.True(t, IsRetryable(err))
}

func TestSMTPSend_5xxIsPermanent(t *testing.T) {
	sut := &SMTPTransport{
		cfg: SMTPConfig{Host: "mail.local", Port: "25"},
		send: func(string, smtp.Auth, string, []string, []byte) error {
			return &textproto.Error{Code: 550, Msg: "no such mailbox"}
		},
	}

	err := sut.Send(context.Background(), statusChangedEvent(t, "alice@example.com"))
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestSMTPSend_CancelledContextIsRetryable(t *testing.T) {
	sut := &SMTPTransport{
		cfg:  SMTPConfig{Host: "mail.local", Port: "25"},
		send: func(string, smtp.Auth, string, []string, []byte) error { return nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sut.Send(ctx, statusChangedEvent(t, "alice@example.com"))
	assert.True(t, IsRetryable(err))
}

type flakyTransport struct {
	err   error
	calls int
}

func (f *flakyTransport) Send(context.Context, *domain.NotificationEvent) error {
	f.calls++
	return f.err
}

func TestBreaker_OpensAfterConsecutiveTransientFailures(t *testing.T) {
	inner := &flakyTransport{err: fmt.Errorf("%w: connection refused", ErrRetryable)}
	sut := NewBreakerTransport(inner)
	event := statusChangedEvent(t, "alice@example.com")

	for i := 0; i < 5; i++ {
		err := sut.Send(context.Background(), event)
		assert.True(t, IsRetryable(err))
	}

	// Breaker is open now: the inner transport is no longer reached and
	// rejections stay retryable.
	before := inner.calls
	err := sut.Send(context.Background(), event)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, before, inner.calls)
}

func TestBreaker_PermanentFailuresDoNotTrip(t *testing.T) {
	inner := &flakyTransport{err: fmt.Errorf("%w: no such mailbox", ErrPermanent)}
	sut := NewBreakerTransport(inner)
	event := statusChangedEvent(t, "alice@example.com")

	for i := 0; i < 10; i++ {
		err := sut.Send(context.Background(), event)
		assert.ErrorIs(t, err, ErrPermanent)
	}
	assert.Equal(t, 10, inner.calls)
}

func TestBreaker_PassesSuccessThrough(t *testing.T) {
	inner := &flakyTransport{}
	sut := NewBreakerTransport(inner)

	err := sut.Send(context.Background(), statusChangedEvent(t, "alice@example.com"))
	assert.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}
