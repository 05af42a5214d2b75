package middlewares

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/janus-id/janus/internal/http/helpers"
)

// WithRequestID genera o propaga un Request ID único para cada request.
// Si el cliente envía X-Request-ID, lo usa. Si no, genera uno nuevo.
// El ID se expone en el header de respuesta y se inyecta en el contexto.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if rid == "" {
				var b [16]byte
				_, _ = rand.Read(b[:])
				rid = hex.EncodeToString(b[:])
			}

			w.Header().Set("X-Request-ID", rid)
			ctx := helpers.WithRequestID(r.Context(), rid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
