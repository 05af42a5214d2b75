// Package email envía los correos transaccionales del servicio (por ahora
// sólo el enlace mágico de login).
package email

import (
	"context"

	"github.com/janus-id/janus/internal/observability/logger"
)

// Sender es la interfaz para enviar emails.
// Implementada por SMTPSender y por EchoSender en desarrollo.
type Sender interface {
	// Send envía un email con contenido HTML y texto plano.
	// El destinatario recibe ambas versiones como multipart/alternative.
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// EchoSender no envía nada: loguea el contenido. Para desarrollo local
// donde no hay SMTP y el enlace se quiere leer del log.
type EchoSender struct{}

func (EchoSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	logger.From(ctx).Info("email echo (not sent)",
		logger.String("to", to),
		logger.String("subject", subject),
		logger.String("body", textBody),
	)
	return nil
}
