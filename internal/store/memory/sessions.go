package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/janus-id/janus/internal/domain/repository"
)

type sessionStore Store

func (s *sessionStore) Create(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[input.SessionIDHash]; exists {
		return nil, repository.ErrConflict
	}
	now := s.now()
	se := &repository.Session{
		ID:            uuid.NewString(),
		AccountID:     input.AccountID,
		SessionIDHash: input.SessionIDHash,
		IPAddress:     input.IPAddress,
		UserAgent:     input.UserAgent,
		DeviceType:    input.DeviceType,
		Browser:       input.Browser,
		Platform:      input.Platform,
		Remember:      input.Remember,
		CreatedAt:     now,
		LastActivity:  now,
		ExpiresAt:     input.ExpiresAt,
	}
	if input.PasswordConfirmedAt != nil {
		t := *input.PasswordConfirmedAt
		se.PasswordConfirmedAt = &t
	}
	s.sessions[se.SessionIDHash] = se
	cp := *se
	return &cp, nil
}

func (s *sessionStore) GetByIDHash(ctx context.Context, sessionIDHash string) (*repository.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessions[sessionIDHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *se
	return &cp, nil
}

func (s *sessionStore) ListByAccount(ctx context.Context, accountID string) ([]repository.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []repository.Session
	for _, se := range s.sessions {
		if se.AccountID == accountID && se.ExpiresAt.After(now) {
			out = append(out, *se)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (s *sessionStore) TouchActivity(ctx context.Context, sessionIDHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if se, ok := s.sessions[sessionIDHash]; ok {
		se.LastActivity = at
	}
	return nil
}

func (s *sessionStore) SetPasswordConfirmedAt(ctx context.Context, sessionIDHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessions[sessionIDHash]
	if !ok {
		return repository.ErrNotFound
	}
	t := at
	se.PasswordConfirmedAt = &t
	return nil
}

func (s *sessionStore) Delete(ctx context.Context, sessionIDHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionIDHash]; !ok {
		return repository.ErrNotFound
	}
	delete(s.sessions, sessionIDHash)
	return nil
}

func (s *sessionStore) DeleteByAccountExcept(ctx context.Context, accountID, keepIDHash string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for h, se := range s.sessions {
		if se.AccountID == accountID && h != keepIDHash {
			delete(s.sessions, h)
			n++
		}
	}
	return n, nil
}

func (s *sessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for h, se := range s.sessions {
		if !se.ExpiresAt.After(now) {
			delete(s.sessions, h)
			n++
		}
	}
	return n, nil
}
