package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Receipt identifies one accepted message.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Transport delivers one rendered HTML mail.
type Transport interface {
	SendMail(ctx context.Context, to, subject, htmlBody string) (Receipt, error)
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// ErrNotDelivered is returned by transports that accept a mail without
// handing it to a mail server.
var ErrNotDelivered = errors.New("notify: mail not delivered")

// SMTPTransport sends mail through an SMTP relay.
//
// gomail has no per-send deadline, so a send that outlives ctx keeps running.
// If it then succeeds the reminder is still unmarked and goes out again on the
// next tick; the late outcome is logged so the duplicate can be traced.
type SMTPTransport struct {
	Config SMTPConfig
	Logger *zap.Logger
	send   func(m *gomail.Message) error
}

func NewSMTPTransport(cfg SMTPConfig, logger *zap.Logger) *SMTPTransport {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPTransport{
		Config: cfg,
		Logger: logger,
		send:   func(m *gomail.Message) error { return dialer.DialAndSend(m) },
	}
}

func (t *SMTPTransport) SendMail(ctx context.Context, to, subject, htmlBody string) (Receipt, error) {
	if t == nil || t.send == nil {
		return Receipt{}, errors.New("smtp transport not configured")
	}
	from := t.Config.From
	if strings.TrimSpace(from) == "" {
		from = t.Config.Username
	}
	id := uuid.NewString()
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", "<"+id+"@contesttracker>")
	m.SetBody("text/html", htmlBody)

	done := make(chan error, 1)
	go func() { done <- t.send(m) }()
	select {
	case <-ctx.Done():
		go t.logLate(id, to, done)
		return Receipt{}, ctx.Err()
	case err := <-done:
		if err != nil {
			return Receipt{}, err
		}
	}
	return Receipt{MessageID: id, SentAt: time.Now().UTC()}, nil
}

func (t *SMTPTransport) logLate(id, to string, done <-chan error) {
	err := <-done
	if t.Logger == nil {
		return
	}
	if err != nil {
		t.Logger.Warn("abandoned mail send failed", zap.String("message_id", id), zap.String("to", to), zap.Error(err))
		return
	}
	t.Logger.Warn("abandoned mail send delivered late; reminder may be sent twice",
		zap.String("message_id", id), zap.String("to", to))
}

// LogTransport writes mails to the log instead of sending them. Used when SMTP
// is not configured. Nothing is delivered, so every send reports ErrNotDelivered
// and the reminder stays eligible.
type LogTransport struct {
	Logger *zap.Logger
}

func (t *LogTransport) SendMail(ctx context.Context, to, subject, htmlBody string) (Receipt, error) {
	_ = ctx
	r := Receipt{MessageID: uuid.NewString(), SentAt: time.Now().UTC()}
	if t != nil && t.Logger != nil {
		t.Logger.Info("mail not sent (log transport)",
			zap.String("message_id", r.MessageID),
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Int("body_bytes", len(htmlBody)),
		)
	}
	return r, ErrNotDelivered
}
