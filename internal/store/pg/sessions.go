package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/janus-id/janus/internal/domain/repository"
)

// SessionStore implementa repository.SessionRepository.
type SessionStore struct{ *Store }

func (s *Store) Sessions() *SessionStore { return &SessionStore{s} }

const sessionColumns = `id, account_id, session_id_hash, ip_address, user_agent, device_type,
	browser, platform, remember, password_confirmed_at, created_at, last_activity, expires_at`

func scanSession(row pgx.Row) (*repository.Session, error) {
	var se repository.Session
	if err := row.Scan(&se.ID, &se.AccountID, &se.SessionIDHash, &se.IPAddress, &se.UserAgent,
		&se.DeviceType, &se.Browser, &se.Platform, &se.Remember, &se.PasswordConfirmedAt,
		&se.CreatedAt, &se.LastActivity, &se.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &se, nil
}

func (s *SessionStore) Create(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	const q = `
INSERT INTO session
(id, account_id, session_id_hash, ip_address, user_agent, device_type, browser, platform, remember, password_confirmed_at, expires_at)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + sessionColumns
	se, err := scanSession(s.pool.QueryRow(ctx, q,
		input.AccountID, input.SessionIDHash, input.IPAddress, input.UserAgent,
		input.DeviceType, input.Browser, input.Platform, input.Remember,
		input.PasswordConfirmedAt, input.ExpiresAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return se, nil
}

func (s *SessionStore) GetByIDHash(ctx context.Context, sessionIDHash string) (*repository.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM session WHERE session_id_hash = $1 LIMIT 1`
	return scanSession(s.pool.QueryRow(ctx, q, sessionIDHash))
}

func (s *SessionStore) ListByAccount(ctx context.Context, accountID string) ([]repository.Session, error) {
	const q = `
SELECT ` + sessionColumns + `
FROM session
WHERE account_id = $1 AND expires_at > now()
ORDER BY last_activity DESC`
	rows, err := s.pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.Session
	for rows.Next() {
		se, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *se)
	}
	return out, rows.Err()
}

func (s *SessionStore) TouchActivity(ctx context.Context, sessionIDHash string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE session SET last_activity = $2 WHERE session_id_hash = $1`,
		sessionIDHash, at)
	return err
}

func (s *SessionStore) SetPasswordConfirmedAt(ctx context.Context, sessionIDHash string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE session SET password_confirmed_at = $2 WHERE session_id_hash = $1`,
		sessionIDHash, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionIDHash string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM session WHERE session_id_hash = $1`, sessionIDHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *SessionStore) DeleteByAccountExcept(ctx context.Context, accountID, keepIDHash string) (int, error) {
	if keepIDHash == "" {
		tag, err := s.pool.Exec(ctx, `DELETE FROM session WHERE account_id = $1`, accountID)
		return int(tag.RowsAffected()), err
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM session WHERE account_id = $1 AND session_id_hash <> $2`,
		accountID, keepIDHash)
	return int(tag.RowsAffected()), err
}

func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM session WHERE expires_at <= $1`, now)
	return int(tag.RowsAffected()), err
}
