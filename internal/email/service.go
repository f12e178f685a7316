package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/clinovia/clinic-api/internal/model"
	"github.com/clinovia/clinic-api/pkg/logger"
)

// Sender delivers the clinic's transactional mail.
type Sender interface {
	SendPasswordResetCode(ctx context.Context, to, code string) error
	SendWelcome(ctx context.Context, to, name string) error
	SendContactReply(ctx context.Context, to, message string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends through a plain SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	logger *logger.Logger
}

func NewSMTPSender(cfg Config, logger *logger.Logger) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (s *SMTPSender) SendPasswordResetCode(ctx context.Context, to, code string) error {
	body := fmt.Sprintf(
		"Your password reset code is %s.\n\nIt expires in %d minutes. If you did not request a reset, ignore this message.",
		code, int(model.OTPTTL.Minutes()))
	return s.send(ctx, to, "Your password reset code", body)
}

func (s *SMTPSender) SendWelcome(ctx context.Context, to, name string) error {
	body := fmt.Sprintf("Hello %s,\n\nYour patient account has been created. You can now sign in and view your appointments.", name)
	return s.send(ctx, to, "Welcome to the clinic", body)
}

func (s *SMTPSender) SendContactReply(ctx context.Context, to, message string) error {
	return s.send(ctx, to, "Re: your enquiry", message)
}

func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	s.logger.Debug("email sent", "to", to, "subject", subject)
	return nil
}

// LogSender writes mail to the log instead of a relay. Used in development
// when no SMTP host is configured.
type LogSender struct {
	logger *logger.Logger
}

func NewLogSender(logger *logger.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendPasswordResetCode(_ context.Context, to, code string) error {
	s.logger.Info("password reset code (email disabled)", "to", to, "code", code)
	return nil
}

func (s *LogSender) SendWelcome(_ context.Context, to, name string) error {
	s.logger.Info("welcome email (email disabled)", "to", to, "name", name)
	return nil
}

func (s *LogSender) SendContactReply(_ context.Context, to, _ string) error {
	s.logger.Info("contact reply email (email disabled)", "to", to)
	return nil
}
