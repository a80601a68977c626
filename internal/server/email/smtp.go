package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
)

var (
	ErrInvalidMailSender    = errors.New("invalid mail sender")
	ErrInvalidMailRecipient = errors.New("invalid mail recipient")
)

// SMTPService sends mail through a plain SMTP relay. There is no
// third-party mail provider in scope for this server (spec section 1
// excludes notification email as a feature), so the OTP delivery path
// that does exist talks to SMTP directly.
type SMTPService struct {
	config *Config
	auth   smtp.Auth
}

func NewSMTPService(config *Config) *SMTPService {
	var auth smtp.Auth
	if config.SMTPUsername != "" {
		auth = smtp.PlainAuth("", config.SMTPUsername, config.SMTPPassword, config.SMTPHost)
	}
	return &SMTPService{config: config, auth: auth}
}

func (s *SMTPService) IsEnabled() bool {
	return s.config.Enabled
}

func (s *SMTPService) Send(ctx context.Context, data *EmailInfo) error {
	if data.FromEmail == "" {
		return ErrInvalidMailSender
	}
	if data.ToEmail == "" {
		return ErrInvalidMailRecipient
	}

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	msg := buildMessage(data)

	if err := smtp.SendMail(addr, s.auth, data.FromEmail, []string{data.ToEmail}, msg); err != nil {
		slog.Error("send email", "to", data.ToEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	slog.Debug("email sent", "to", data.ToEmail, "subject", data.Subject)
	return nil
}

func buildMessage(data *EmailInfo) []byte {
	return []byte(fmt.Sprintf(
		"From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		data.FromName, data.FromEmail, data.ToEmail, data.Subject, data.HTMLBody,
	))
}
