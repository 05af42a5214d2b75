package email

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"
	"github.com/janus-id/janus/internal/observability/logger"
)

// SMTPSender implementa Sender usando SMTP.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// NewSMTPSender crea un SMTPSender con TLS en modo auto.
func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{
		Host:    host,
		Port:    port,
		From:    from,
		User:    user,
		Pass:    pass,
		TLSMode: "auto",
	}
}

// Send envía un email con contenido HTML y texto plano.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	log := logger.From(ctx).With(
		logger.Component("SMTPSender"),
		logger.String("host", s.Host),
		logger.Int("port", s.Port),
	)

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	// Preferimos multipart/alternative (txt + html)
	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify, // solo dev
	}

	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}

	log.Debug("email sent")
	return nil
}
