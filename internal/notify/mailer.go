package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"strings"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer delivers messages through an SMTP relay.
type SMTPMailer struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return &SMTPMailer{cfg: cfg, dialer: d}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	built, err := buildMessage(m.cfg.From, msg)
	if err != nil {
		return err
	}
	return m.dialer.DialAndSend(built)
}

func buildMessage(from string, msg Message) (*gomail.Message, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, errors.New("email recipient is empty")
	}
	html, err := RenderHTML(msg)
	if err != nil {
		return nil, err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", RenderText(msg))
	m.AddAlternative("text/html", html)
	return m, nil
}

// LogMailer only logs outgoing messages; used when SMTP is not configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	log.Printf("[mail] to=%s subject=%q (smtp disabled)", msg.To, msg.Subject)
	return nil
}
