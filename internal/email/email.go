package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"nf-licencas.app/cloud/internal/logger"
	"nf-licencas.app/cloud/models"
)

type Sender interface {
	Send(to, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends plain-text mail over STARTTLS when the server offers it.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	if err := s.dialer.DialAndSend(s.message(to, subject, body)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPSender) message(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}

// LogSender stands in for SMTP when it is not configured. The body carries the
// shared MeuDanfe credential, so only its size is logged; the license code is
// logged by the issuer.
type LogSender struct{}

func (LogSender) Send(to, subject, body string) error {
	logger.Warn("SMTP not configured, email not sent", map[string]interface{}{
		"to":         to,
		"subject":    subject,
		"body_bytes": len(body),
	})
	return nil
}

// LicenseMailer delivers issued licenses to purchasers.
type LicenseMailer struct {
	sender       Sender
	apiKey       string
	validityDays int
}

func NewLicenseMailer(sender Sender, apiKey string, validityDays int) *LicenseMailer {
	return &LicenseMailer{
		sender:       sender,
		apiKey:       apiKey,
		validityDays: validityDays,
	}
}

func (m *LicenseMailer) Deliver(ctx context.Context, license *models.License) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.sender.Send(license.Email, LicenseSubject, LicenseBody(license.Code, m.apiKey, m.validityDays)); err != nil {
		return err
	}

	logger.Info("License email sent", map[string]interface{}{
		"code":  license.Code,
		"email": license.Email,
	})
	return nil
}
