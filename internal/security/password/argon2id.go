package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
}

var Default = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, KeyLen: 32}

// Hash devuelve un PHC string: $argon2id$v=19$m=...,t=...,p=...$<saltB64>$<dkB64>
func Hash(p Params, plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("empty password")
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// Verify compara en tiempo constante. Nunca lanza por password incorrecto:
// cualquier malformación del hash también devuelve false.
func Verify(plain, phc string) bool {
	m, t, p, salt, dkStored, ok := parsePHC(phc)
	if !ok {
		return false
	}
	key := argon2.IDKey([]byte(plain), salt, t, m, p, uint32(len(dkStored)))
	return subtle.ConstantTimeCompare(key, dkStored) == 1
}

// NeedsRehash indica si el hash fue generado con parámetros más débiles que
// los actuales. El login service re-hashea transparente tras un Verify OK.
func NeedsRehash(phc string, params Params) bool {
	m, t, p, _, dk, ok := parsePHC(phc)
	if !ok {
		return true
	}
	return m < params.Memory || t < params.Time || p < params.Parallelism || uint32(len(dk)) < params.KeyLen
}

func parsePHC(phc string) (m, t uint32, p uint8, salt, dk []byte, ok bool) {
	// "$argon2id$v=19$m=..,t=..,p=..$<saltB64>$<dkB64>" => 6 campos tras el split
	// (el primero vacío por el '$' inicial).
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, false
	}
	var v int
	if n, _ := fmt.Sscanf(parts[2], "v=%d", &v); n != 1 || v != 19 {
		return 0, 0, 0, nil, nil, false
	}
	var mi, ti, pi int
	if n, _ := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mi, &ti, &pi); n != 3 {
		return 0, 0, 0, nil, nil, false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, false
	}
	dk, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return 0, 0, 0, nil, nil, false
	}
	return uint32(mi), uint32(ti), uint8(pi), salt, dk, true
}
