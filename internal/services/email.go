package services

import (
	"fmt"
	"net/smtp"
	"strings"

	"school_portal_echo/internal/config"
)

type EmailService struct {
	cfg config.MailConfig
}

func NewEmailService(cfg config.MailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

func (s *EmailService) SendEmail(to []string, subject, body string) error {
	if !s.cfg.Configured() {
		return fmt.Errorf("SMTP credentials not fully configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)

	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	err := smtp.SendMail(s.cfg.Host+":"+s.cfg.Port, auth, from, to, buildMessage(from, to, subject, body))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	// header injection guard
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject)

	return []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n", from, strings.Join(to, ", "), subject, body))
}
