package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/janus-id/janus/internal/domain/repository"
)

// PasskeyStore implementa repository.PasskeyRepository.
type PasskeyStore struct{ *Store }

func (s *Store) Passkeys() *PasskeyStore { return &PasskeyStore{s} }

const passkeyColumns = `id, account_id, alias, credential_id, public_key, attestation_type,
	transports, sign_count, backup_eligible, backup_state, created_at, last_used_at`

func scanPasskey(row pgx.Row) (*repository.PasskeyCredential, error) {
	var c repository.PasskeyCredential
	var signCount int64
	if err := row.Scan(&c.ID, &c.AccountID, &c.Alias, &c.CredentialID, &c.PublicKey, &c.AttestationType,
		&c.Transports, &signCount, &c.BackupEligible, &c.BackupState, &c.CreatedAt, &c.LastUsedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	c.SignCount = uint32(signCount)
	return &c, nil
}

func (s *PasskeyStore) Create(ctx context.Context, input repository.CreatePasskeyInput) (*repository.PasskeyCredential, error) {
	const q = `
INSERT INTO passkey_credential
(id, account_id, alias, credential_id, public_key, attestation_type, transports, sign_count, backup_eligible, backup_state)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + passkeyColumns
	c, err := scanPasskey(s.pool.QueryRow(ctx, q,
		input.AccountID, input.Alias, input.CredentialID, input.PublicKey, input.AttestationType,
		input.Transports, int64(input.SignCount), input.BackupEligible, input.BackupState))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return c, nil
}

func (s *PasskeyStore) GetByCredentialID(ctx context.Context, credentialID string) (*repository.PasskeyCredential, error) {
	const q = `SELECT ` + passkeyColumns + ` FROM passkey_credential WHERE credential_id = $1 LIMIT 1`
	return scanPasskey(s.pool.QueryRow(ctx, q, credentialID))
}

func (s *PasskeyStore) GetByID(ctx context.Context, accountID, id string) (*repository.PasskeyCredential, error) {
	const q = `SELECT ` + passkeyColumns + ` FROM passkey_credential WHERE id = $1 AND account_id = $2 LIMIT 1`
	return scanPasskey(s.pool.QueryRow(ctx, q, id, accountID))
}

func (s *PasskeyStore) ListByAccount(ctx context.Context, accountID string) ([]repository.PasskeyCredential, error) {
	const q = `SELECT ` + passkeyColumns + ` FROM passkey_credential WHERE account_id = $1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.PasskeyCredential
	for rows.Next() {
		c, err := scanPasskey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PasskeyStore) CountByAccount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(1) FROM passkey_credential WHERE account_id = $1`, accountID).Scan(&n)
	return n, err
}

func (s *PasskeyStore) UpdateAlias(ctx context.Context, accountID, id, alias string) error {
	const q = `UPDATE passkey_credential SET alias = $3 WHERE id = $1 AND account_id = $2`
	tag, err := s.pool.Exec(ctx, q, id, accountID, alias)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *PasskeyStore) UpdateAfterLogin(ctx context.Context, credentialID string, signCount uint32, backupState bool, usedAt time.Time) error {
	const q = `
UPDATE passkey_credential
SET sign_count = $2, backup_state = $3, last_used_at = $4
WHERE credential_id = $1`
	tag, err := s.pool.Exec(ctx, q, credentialID, int64(signCount), backupState, usedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *PasskeyStore) Delete(ctx context.Context, accountID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM passkey_credential WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
