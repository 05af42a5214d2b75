// Package memory implementa los repositorios de dominio en memoria.
//
// Pensado para tests y para correr el servidor sin base de datos. Un mutex
// por Store serializa todo; suficiente para el volumen de un entorno dev.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/janus-id/janus/internal/domain/repository"
)

type Store struct {
	mu sync.Mutex

	accounts map[string]*repository.Account // por ID
	emails   map[string]string              // lower(email) -> ID

	passkeys map[string]*repository.PasskeyCredential // por ID de fila
	credIdx  map[string]string                        // credential_id -> ID de fila

	totp     map[string]*repository.MFATOTP   // por account ID
	recovery map[string]map[string]*time.Time // account ID -> hash -> used_at

	sessions map[string]*repository.Session // por session_id_hash

	now func() time.Time
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*repository.Account),
		emails:   make(map[string]string),
		passkeys: make(map[string]*repository.PasskeyCredential),
		credIdx:  make(map[string]string),
		totp:     make(map[string]*repository.MFATOTP),
		recovery: make(map[string]map[string]*time.Time),
		sessions: make(map[string]*repository.Session),
		now:      time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}

func (s *Store) Accounts() repository.AccountRepository { return (*accountStore)(s) }
func (s *Store) Passkeys() repository.PasskeyRepository { return (*passkeyStore)(s) }
func (s *Store) MFA() repository.MFARepository          { return (*mfaStore)(s) }
func (s *Store) Sessions() repository.SessionRepository { return (*sessionStore)(s) }

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// ====================== Accounts ======================

type accountStore Store

func (s *accountStore) GetByEmail(ctx context.Context, email string) (*repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[normEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a := *s.accounts[id]
	return &a, nil
}

func (s *accountStore) GetByID(ctx context.Context, accountID string) (*repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *accountStore) Create(ctx context.Context, input repository.CreateAccountInput) (*repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := normEmail(input.Email)
	if _, exists := s.emails[email]; exists {
		return nil, repository.ErrConflict
	}
	now := s.now()
	a := &repository.Account{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      input.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.PasswordHash != "" {
		h := input.PasswordHash
		a.PasswordHash = &h
	}
	s.accounts[a.ID] = a
	s.emails[email] = a.ID
	cp := *a
	return &cp, nil
}

func (s *accountStore) UpdatePasswordHash(ctx context.Context, accountID, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	a.PasswordHash = &newHash
	a.UpdatedAt = s.now()
	return nil
}

func (s *accountStore) UpdateProfile(ctx context.Context, accountID, name, email string) (*repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	newEmail := normEmail(email)
	if owner, exists := s.emails[newEmail]; exists && owner != accountID {
		return nil, repository.ErrConflict
	}
	if newEmail != a.Email {
		delete(s.emails, a.Email)
		s.emails[newEmail] = accountID
		a.Email = newEmail
		// El buzón nuevo no está probado.
		a.EmailVerifiedAt = nil
	}
	a.Name = name
	a.UpdatedAt = s.now()
	cp := *a
	return &cp, nil
}

func (s *accountStore) SetEmailVerified(ctx context.Context, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	if a.EmailVerifiedAt == nil {
		a.EmailVerifiedAt = &at
		a.UpdatedAt = s.now()
	}
	return nil
}

func (s *accountStore) Delete(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	delete(s.emails, a.Email)
	delete(s.accounts, accountID)
	for id, c := range s.passkeys {
		if c.AccountID == accountID {
			delete(s.credIdx, c.CredentialID)
			delete(s.passkeys, id)
		}
	}
	delete(s.totp, accountID)
	delete(s.recovery, accountID)
	for h, se := range s.sessions {
		if se.AccountID == accountID {
			delete(s.sessions, h)
		}
	}
	return nil
}
