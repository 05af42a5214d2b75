package helpers

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/janus-id/janus/internal/domain/repository"
)

type ctxHTTPKey string

const (
	ctxRequestIDKey ctxHTTPKey = "request_id"
	ctxAccountKey   ctxHTTPKey = "account"
	ctxSessionKey   ctxHTTPKey = "session"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithAuth guarda la cuenta y la sesión autenticadas en el contexto.
func WithAuth(ctx context.Context, account *repository.Account, session *repository.Session) context.Context {
	ctx = context.WithValue(ctx, ctxAccountKey, account)
	return context.WithValue(ctx, ctxSessionKey, session)
}

// CurrentAccount devuelve la cuenta autenticada o nil.
func CurrentAccount(ctx context.Context) *repository.Account {
	if v, ok := ctx.Value(ctxAccountKey).(*repository.Account); ok {
		return v
	}
	return nil
}

// CurrentSession devuelve la sesión autenticada o nil.
func CurrentSession(ctx context.Context) *repository.Session {
	if v, ok := ctx.Value(ctxSessionKey).(*repository.Session); ok {
		return v
	}
	return nil
}

// ClientIP extrae la IP del cliente respetando X-Forwarded-For si existe.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
