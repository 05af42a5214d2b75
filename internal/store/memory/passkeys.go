package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/janus-id/janus/internal/domain/repository"
)

type passkeyStore Store

func (s *passkeyStore) Create(ctx context.Context, input repository.CreatePasskeyInput) (*repository.PasskeyCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.credIdx[input.CredentialID]; exists {
		return nil, repository.ErrConflict
	}
	c := &repository.PasskeyCredential{
		ID:              uuid.NewString(),
		AccountID:       input.AccountID,
		Alias:           input.Alias,
		CredentialID:    input.CredentialID,
		PublicKey:       append([]byte(nil), input.PublicKey...),
		AttestationType: input.AttestationType,
		Transports:      append([]string(nil), input.Transports...),
		SignCount:       input.SignCount,
		BackupEligible:  input.BackupEligible,
		BackupState:     input.BackupState,
		CreatedAt:       s.now(),
	}
	s.passkeys[c.ID] = c
	s.credIdx[c.CredentialID] = c.ID
	cp := *c
	return &cp, nil
}

func (s *passkeyStore) GetByCredentialID(ctx context.Context, credentialID string) (*repository.PasskeyCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.credIdx[credentialID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s.passkeys[id]
	return &cp, nil
}

func (s *passkeyStore) GetByID(ctx context.Context, accountID, id string) (*repository.PasskeyCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.passkeys[id]
	if !ok || c.AccountID != accountID {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *passkeyStore) ListByAccount(ctx context.Context, accountID string) ([]repository.PasskeyCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.PasskeyCredential
	for _, c := range s.passkeys {
		if c.AccountID == accountID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *passkeyStore) CountByAccount(ctx context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.passkeys {
		if c.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (s *passkeyStore) UpdateAlias(ctx context.Context, accountID, id, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.passkeys[id]
	if !ok || c.AccountID != accountID {
		return repository.ErrNotFound
	}
	c.Alias = alias
	return nil
}

func (s *passkeyStore) UpdateAfterLogin(ctx context.Context, credentialID string, signCount uint32, backupState bool, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.credIdx[credentialID]
	if !ok {
		return repository.ErrNotFound
	}
	c := s.passkeys[id]
	c.SignCount = signCount
	c.BackupState = backupState
	at := usedAt
	c.LastUsedAt = &at
	return nil
}

func (s *passkeyStore) Delete(ctx context.Context, accountID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.passkeys[id]
	if !ok || c.AccountID != accountID {
		return repository.ErrNotFound
	}
	delete(s.credIdx, c.CredentialID)
	delete(s.passkeys, id)
	return nil
}
