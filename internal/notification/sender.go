package notification

import (
	"context"
	"time"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"
)

type Sender interface {
	Send(ctx context.Context, e Email) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	dialer *mail.Dialer
	from   string
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.OpportunisticStartTLS
	return &SMTPSender{dialer: d, from: cfg.From}
}

func (s *SMTPSender) Send(ctx context.Context, e Email) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/plain", e.Text)
	m.AddAlternative("text/html", e.HTML)

	d, err := s.dialerFor(ctx)
	if err != nil {
		return err
	}
	return d.DialAndSend(m)
}

// dialerFor copies the shared dialer with its timeout bounded by ctx, or by
// sendTimeout when ctx has no deadline.
func (s *SMTPSender) dialerFor(ctx context.Context) (*mail.Dialer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := *s.dialer
	d.Timeout = sendTimeout
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, context.DeadlineExceeded
		}
		d.Timeout = left
	}
	return &d, nil
}

// LogSender writes emails to the log instead of sending them. Used when SMTP
// is not configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, e Email) error {
	logger.FromCtx(ctx).Info("email not sent, smtp disabled",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
	)
	return nil
}
