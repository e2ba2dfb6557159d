package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// EmailConfig configures the optional email delivery of notifications.
type EmailConfig struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Password string `yaml:"password"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	UseSSL   bool   `yaml:"use_ssl"`
}

func (c EmailConfig) Validate() error {
	if strings.TrimSpace(c.From) == "" {
		return errors.New("email from is required")
	}
	if strings.TrimSpace(c.To) == "" {
		return errors.New("email to is required")
	}
	if strings.TrimSpace(c.Server) == "" {
		return errors.New("smtp server is required")
	}
	if c.Port <= 0 {
		return errors.New("smtp port is required")
	}
	return nil
}

// EmailNotifier delivers notifications over SMTP, for deployments where the
// watching terminal is not where the user looks.
type EmailNotifier struct {
	cfg EmailConfig
}

func NewEmailNotifier(cfg EmailConfig) (*EmailNotifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &EmailNotifier{cfg: cfg}, nil
}

func (n *EmailNotifier) Notify(ctx context.Context, title, body string) error {
	if n == nil {
		return errors.New("email notifier is nil")
	}
	from := strings.TrimSpace(n.cfg.From)
	to := strings.TrimSpace(n.cfg.To)

	msg, err := buildMessage(from, to, title, body)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", strings.TrimSpace(n.cfg.Server), n.cfg.Port)
	dialer := &net.Dialer{Timeout: 15 * time.Second}

	var conn net.Conn
	if n.cfg.UseSSL {
		tlsCfg := &tls.Config{ServerName: strings.TrimSpace(n.cfg.Server)}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, strings.TrimSpace(n.cfg.Server))
	if err != nil {
		return fmt.Errorf("smtp client failed: %w", err)
	}
	defer func() { _ = c.Quit() }()

	if !n.cfg.UseSSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: strings.TrimSpace(n.cfg.Server)}); err != nil {
				return fmt.Errorf("smtp starttls failed: %w", err)
			}
		}
	}

	auth := smtp.PlainAuth("", from, strings.TrimSpace(n.cfg.Password), strings.TrimSpace(n.cfg.Server))
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth failed: %w", err)
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT TO failed: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close failed: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(subject)

	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})

	var buf bytes.Buffer
	mw, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}
	if _, err := io.WriteString(mw, body); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
