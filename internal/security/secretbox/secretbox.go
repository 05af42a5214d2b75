// Package secretbox cifra secretos en reposo (semillas TOTP) con AES-256-GCM
// usando una clave maestra tomada del entorno.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	masterKeyEnvVar   = "JANUS_SECRETBOX_KEY"
	nonceSizeGCM      = 12  // nonce AES-GCM recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

var (
	masterKey     []byte
	masterKeyOnce sync.Once
	loadErr       error
	mu            sync.RWMutex
)

// ensureLoaded carga la clave maestra desde JANUS_SECRETBOX_KEY (base64) una sola vez.
func ensureLoaded() error {
	masterKeyOnce.Do(func() {
		kb64 := strings.TrimSpace(os.Getenv(masterKeyEnvVar))
		if kb64 == "" {
			loadErr = fmt.Errorf("%s no seteada; genere una clave con: openssl rand -base64 32", masterKeyEnvVar)
			return
		}
		k, err := base64.StdEncoding.DecodeString(kb64)
		if err != nil {
			loadErr = fmt.Errorf("decode %s: %w", masterKeyEnvVar, err)
			return
		}
		if len(k) != requiredKeyLength {
			loadErr = fmt.Errorf("%s debe decodificar a %d bytes, obtuvo %d", masterKeyEnvVar, requiredKeyLength, len(k))
			return
		}
		mu.Lock()
		masterKey = make([]byte, len(k))
		copy(masterKey, k)
		mu.Unlock()
	})
	return loadErr
}

// Ready expone si la clave está cargada (útil para healthchecks).
func Ready() bool {
	mu.RLock()
	defer mu.RUnlock()
	return len(masterKey) == requiredKeyLength
}

func newGCM() (cipher.AEAD, error) {
	mu.RLock()
	key := make([]byte, len(masterKey))
	copy(key, masterKey)
	mu.RUnlock()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return aead, nil
}

// Encrypt cifra plainText y devuelve base64(nonce)|base64(ciphertext).
func Encrypt(plainText string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	aead, err := newGCM()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}

	ct := aead.Seal(nil, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt recibe base64(nonce)|base64(ciphertext) y devuelve el texto plano.
func Decrypt(cipherText string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}

	parts := strings.Split(cipherText, sep)
	if len(parts) != 2 {
		return "", errors.New("formato inválido: esperado base64(nonce)|base64(ciphertext)")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return "", fmt.Errorf("nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))
	}

	aead, err := newGCM()
	if err != nil {
		return "", err
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}

// --- Helpers para tests ---

// UnsafeResetSecretBoxForTests borra estado interno. Usar sólo en tests.
func UnsafeResetSecretBoxForTests() {
	mu.Lock()
	masterKey = nil
	mu.Unlock()
	masterKeyOnce = sync.Once{}
	loadErr = nil
}

// UnsafeSetMasterKeyForTests permite setear una clave cruda (32 bytes) en tests.
func UnsafeSetMasterKeyForTests(k []byte) error {
	if len(k) != requiredKeyLength {
		return fmt.Errorf("clave inválida para test: se requieren %d bytes", requiredKeyLength)
	}
	UnsafeResetSecretBoxForTests()
	// Consume la Once: ensureLoaded no debe pisar la clave inyectada
	// leyendo el entorno en el próximo Encrypt/Decrypt.
	masterKeyOnce.Do(func() {})
	mu.Lock()
	masterKey = make([]byte, len(k))
	copy(masterKey, k)
	mu.Unlock()
	return nil
}
