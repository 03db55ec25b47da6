package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"finledger/internal/log"
)

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPSender delivers through an authenticated SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *log.Logger
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: log.ForComponent(log.ComponentMailer),
	}
}

func (s *SMTPSender) Send(ctx context.Context, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from, err := mail.ParseAddress(s.cfg.From)
	if err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	to, err := mail.ParseAddress(e.To)
	if err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, auth, from.Address, []string{to.Address}, buildMIME(from.String(), to.String(), e)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	s.logger.InfoContext(ctx, "Email sent", "to", to.Address, "subject", e.Subject)
	return nil
}

func buildMIME(from, to string, e Email) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mimeHeader(e.Subject) + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(e.HTML)
	return []byte(b.String())
}

func mimeHeader(s string) string {
	return mime.QEncoding.Encode("utf-8", s)
}

// LogSender only logs emails. Used when no SMTP relay is configured.
type LogSender struct {
	logger *log.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{logger: log.ForComponent(log.ComponentMailer)}
}

func (s *LogSender) Send(ctx context.Context, e Email) error {
	s.logger.InfoContext(ctx, "Email delivery skipped, no SMTP relay configured",
		"to", e.To,
		"subject", e.Subject,
		"bytes", len(e.HTML))
	return nil
}

// Direct renders and sends inline, for deployments without a broker.
type Direct struct {
	renderer *Renderer
	sender   Sender
}

func NewDirect(renderer *Renderer, sender Sender) *Direct {
	return &Direct{renderer: renderer, sender: sender}
}

func (d *Direct) Dispatch(ctx context.Context, m Message) error {
	e, err := d.renderer.Render(m)
	if err != nil {
		return err
	}
	return d.sender.Send(ctx, e)
}
