// Package tokens genera tokens opacos y fingerprints.
// En la DB se guardan SOLO hashes: un dump de tablas no sirve para armar
// cookies de sesión ni recovery codes válidos.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding (para guardar en DB).
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SHA256Hex devuelve sha256(input) en hexadecimal.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // sin I, O, 0, 1

// GenerateCode genera un código legible de n caracteres (recovery codes).
func GenerateCode(n int) (string, error) {
	code := make([]byte, n)
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := 0; i < n; i++ {
		code[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(code), nil
}
