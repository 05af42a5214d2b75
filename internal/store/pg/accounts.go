package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/janus-id/janus/internal/domain/repository"
)

// AccountStore implementa repository.AccountRepository.
type AccountStore struct{ *Store }

func (s *Store) Accounts() *AccountStore { return &AccountStore{s} }

const accountColumns = `id, email, email_verified_at, name, password_hash, created_at, updated_at`

func scanAccount(row pgx.Row) (*repository.Account, error) {
	var a repository.Account
	if err := row.Scan(&a.ID, &a.Email, &a.EmailVerifiedAt, &a.Name, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*repository.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM account WHERE LOWER(email) = LOWER($1) LIMIT 1`
	return scanAccount(s.pool.QueryRow(ctx, q, email))
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (*repository.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM account WHERE id = $1 LIMIT 1`
	return scanAccount(s.pool.QueryRow(ctx, q, accountID))
}

func (s *AccountStore) Create(ctx context.Context, input repository.CreateAccountInput) (*repository.Account, error) {
	var hash *string
	if input.PasswordHash != "" {
		hash = &input.PasswordHash
	}
	const q = `
INSERT INTO account (id, email, name, password_hash)
VALUES (gen_random_uuid(), LOWER($1), $2, $3)
RETURNING ` + accountColumns
	a, err := scanAccount(s.pool.QueryRow(ctx, q, input.Email, input.Name, hash))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return a, nil
}

func (s *AccountStore) UpdatePasswordHash(ctx context.Context, accountID, newHash string) error {
	const q = `UPDATE account SET password_hash = $2, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, accountID, newHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *AccountStore) UpdateProfile(ctx context.Context, accountID, name, email string) (*repository.Account, error) {
	const q = `
UPDATE account
SET name = $2,
    email_verified_at = CASE WHEN LOWER(email) = LOWER($3) THEN email_verified_at ELSE NULL END,
    email = LOWER($3),
    updated_at = now()
WHERE id = $1
RETURNING ` + accountColumns
	a, err := scanAccount(s.pool.QueryRow(ctx, q, accountID, name, email))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return a, nil
}

func (s *AccountStore) SetEmailVerified(ctx context.Context, accountID string, at time.Time) error {
	const q = `UPDATE account SET email_verified_at = $2, updated_at = now() WHERE id = $1 AND email_verified_at IS NULL`
	_, err := s.pool.Exec(ctx, q, accountID, at)
	return err
}

func (s *AccountStore) Delete(ctx context.Context, accountID string) error {
	// Passkeys, MFA y sesiones caen por FK ON DELETE CASCADE.
	tag, err := s.pool.Exec(ctx, `DELETE FROM account WHERE id = $1`, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
