package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"

	"github.com/jkeevk/diploma-shop/internal/domain"
)

// SMTPConfig is built once at startup from the environment and handed to
// the transport; there are no package-level mail settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (c SMTPConfig) addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// SMTPTransport delivers notifications over plain SMTP.
type SMTPTransport struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, send: smtp.SendMail}
}

func (t *SMTPTransport) Send(ctx context.Context, event *domain.NotificationEvent) error {
	msg, err := Render(event)
	if err != nil {
		return fmt.Errorf("render event %s: %w: %v", event.ID, ErrPermanent, err)
	}
	if msg.To == "" {
		return fmt.Errorf("event %s has no recipient: %w", event.ID, ErrPermanent)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send aborted: %w: %v", ErrRetryable, err)
	}

	var auth smtp.Auth
	if t.cfg.Username != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}

	raw := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		t.cfg.From, msg.To, msg.Subject, msg.Body))

	if err := t.send(t.cfg.addr(), auth, t.cfg.From, []string{msg.To}, raw); err != nil {
		return classify(event, err)
	}
	return nil
}

// classify maps SMTP failures onto the retryable/permanent split. Network
// problems and 4xx responses are transient; everything else (5xx, bad
// addresses) will not get better on its own.
func classify(event *domain.NotificationEvent, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("send event %s: %w: %v", event.ID, ErrRetryable, err)
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code >= 400 && protoErr.Code < 500 {
		return fmt.Errorf("send event %s: %w: %v", event.ID, ErrRetryable, err)
	}

	return fmt.Errorf("send event %s: %w: %v", event.ID, ErrPermanent, err)
}
