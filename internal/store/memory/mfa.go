package memory

import (
	"context"
	"time"

	"github.com/janus-id/janus/internal/domain/repository"
)

type mfaStore Store

func (s *mfaStore) UpsertTOTP(ctx context.Context, accountID, secretEnc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if m, ok := s.totp[accountID]; ok {
		m.SecretEncrypted = secretEnc
		m.ConfirmedAt = nil
		m.LastCounterUsed = nil
		m.UpdatedAt = now
		return nil
	}
	s.totp[accountID] = &repository.MFATOTP{
		AccountID:       accountID,
		SecretEncrypted: secretEnc,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return nil
}

func (s *mfaStore) ConfirmTOTP(ctx context.Context, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.totp[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	t := at
	m.ConfirmedAt = &t
	m.UpdatedAt = s.now()
	return nil
}

func (s *mfaStore) GetTOTP(ctx context.Context, accountID string) (*repository.MFATOTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.totp[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *mfaStore) SetTOTPCounter(ctx context.Context, accountID string, counter uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.totp[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	c := counter
	m.LastCounterUsed = &c
	m.UpdatedAt = s.now()
	return nil
}

func (s *mfaStore) DisableTOTP(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.totp, accountID)
	delete(s.recovery, accountID)
	return nil
}

func (s *mfaStore) SetRecoveryCodes(ctx context.Context, accountID string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]*time.Time, len(hashes))
	for _, h := range hashes {
		set[h] = nil
	}
	s.recovery[accountID] = set
	return nil
}

func (s *mfaStore) CountRecoveryCodes(ctx context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, usedAt := range s.recovery[accountID] {
		if usedAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *mfaStore) UseRecoveryCode(ctx context.Context, accountID, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.recovery[accountID]
	if !ok {
		return false, nil
	}
	usedAt, exists := set[hash]
	if !exists || usedAt != nil {
		return false, nil
	}
	now := s.now()
	set[hash] = &now
	return true, nil
}
