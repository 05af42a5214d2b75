// Package magiclink genera y valida URLs de login firmadas con vencimiento.
//
// El enlace lleva tres parámetros: hash (sha1 del email al momento de emitir),
// expires (unix seconds) y signature (HMAC-SHA256 sobre la URL canónica sin la
// firma). Cambiar cualquier parte del enlace invalida la firma.
package magiclink

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const loginPathPrefix = "/magic-link/login/"

var (
	// ErrLinkExpired indica que el parámetro expires quedó en el pasado.
	ErrLinkExpired = errors.New("magiclink: link expired")
	// ErrLinkSignature indica firma HMAC inválida o parámetros alterados.
	ErrLinkSignature = errors.New("magiclink: invalid signature")
	// ErrLinkEmailMismatch indica que el email de la cuenta cambió después de emitir el enlace.
	ErrLinkEmailMismatch = errors.New("magiclink: email changed since link was issued")
	// ErrLinkUsed indica que el enlace ya fue consumido (un solo uso).
	ErrLinkUsed = errors.New("magiclink: link already used")
)

// Signer emite y verifica enlaces firmados para una base URL fija.
type Signer struct {
	key     []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewSigner construye un Signer. baseURL sin slash final (ej: https://id.example.com).
func NewSigner(key []byte, baseURL string, ttl time.Duration) *Signer {
	return &Signer{
		key:     key,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Sign emite la URL completa de login para la cuenta indicada.
func (s *Signer) Sign(accountID, email string) string {
	expires := s.now().Add(s.ttl).Unix()
	canonical := s.canonical(accountID, EmailHash(email), expires)
	return canonical + "&signature=" + s.hmacHex(canonical)
}

// Verify valida los parámetros de un enlace contra la cuenta resuelta.
// currentEmail es el email actual de la cuenta; si cambió desde la emisión
// el hash no coincide y el enlace queda inválido.
func (s *Signer) Verify(accountID, currentEmail string, q url.Values) error {
	hash := q.Get("hash")
	sig := q.Get("signature")
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		return ErrLinkSignature
	}

	// Primero la firma: un expires adulterado no debe reportarse como "expirado".
	canonical := s.canonical(accountID, hash, expires)
	if !hmac.Equal([]byte(s.hmacHex(canonical)), []byte(sig)) {
		return ErrLinkSignature
	}
	if s.now().Unix() > expires {
		return ErrLinkExpired
	}
	if !hmac.Equal([]byte(hash), []byte(EmailHash(currentEmail))) {
		return ErrLinkEmailMismatch
	}
	return nil
}

// Fingerprint deriva la clave de consumo (un solo uso) a partir de la firma.
func Fingerprint(q url.Values) string {
	sum := sha256.Sum256([]byte(q.Get("signature")))
	return hex.EncodeToString(sum[:])
}

// EmailHash es el hash corto del email que viaja en el enlace.
func EmailHash(email string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

func (s *Signer) canonical(accountID, hash string, expires int64) string {
	return fmt.Sprintf("%s%s%s?expires=%d&hash=%s",
		s.baseURL, loginPathPrefix, url.PathEscape(accountID), expires, hash)
}

func (s *Signer) hmacHex(canonical string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}
