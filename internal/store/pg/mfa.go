package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/janus-id/janus/internal/domain/repository"
)

// MFAStore implementa repository.MFARepository.
type MFAStore struct{ *Store }

func (s *Store) MFA() *MFAStore { return &MFAStore{s} }

func (s *MFAStore) UpsertTOTP(ctx context.Context, accountID, secretEnc string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_mfa_totp (account_id, secret_encrypted)
		VALUES ($1,$2)
		ON CONFLICT (account_id)
		DO UPDATE SET secret_encrypted = EXCLUDED.secret_encrypted,
					  confirmed_at = NULL,
					  last_counter_used = NULL,
					  updated_at = now()
	`, accountID, secretEnc)
	return err
}

func (s *MFAStore) ConfirmTOTP(ctx context.Context, accountID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE account_mfa_totp SET confirmed_at = $2, updated_at = now() WHERE account_id = $1`,
		accountID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *MFAStore) GetTOTP(ctx context.Context, accountID string) (*repository.MFATOTP, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT account_id, secret_encrypted, confirmed_at, last_counter_used, created_at, updated_at
		FROM account_mfa_totp WHERE account_id = $1
	`, accountID)
	var m repository.MFATOTP
	var counter *int64
	if err := row.Scan(&m.AccountID, &m.SecretEncrypted, &m.ConfirmedAt, &counter, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if counter != nil {
		c := uint64(*counter)
		m.LastCounterUsed = &c
	}
	return &m, nil
}

func (s *MFAStore) SetTOTPCounter(ctx context.Context, accountID string, counter uint64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE account_mfa_totp SET last_counter_used = $2, updated_at = now() WHERE account_id = $1`,
		accountID, int64(counter))
	return err
}

func (s *MFAStore) DisableTOTP(ctx context.Context, accountID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM account_mfa_totp WHERE account_id = $1`, accountID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM mfa_recovery_code WHERE account_id = $1`, accountID)
	return err
}

// ====================== Recovery codes ======================

func (s *MFAStore) SetRecoveryCodes(ctx context.Context, accountID string, hashes []string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM mfa_recovery_code WHERE account_id = $1`, accountID); err != nil {
		return err
	}
	if len(hashes) == 0 {
		return nil
	}
	var b pgx.Batch
	for _, h := range hashes {
		b.Queue(`INSERT INTO mfa_recovery_code (account_id, code_hash) VALUES ($1,$2)`, accountID, h)
	}
	br := s.pool.SendBatch(ctx, &b)
	for range hashes {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

func (s *MFAStore) CountRecoveryCodes(ctx context.Context, accountID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM mfa_recovery_code WHERE account_id = $1 AND used_at IS NULL`,
		accountID).Scan(&n)
	return n, err
}

func (s *MFAStore) UseRecoveryCode(ctx context.Context, accountID, hash string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE mfa_recovery_code
		SET used_at = now()
		WHERE account_id = $1 AND code_hash = $2 AND used_at IS NULL
	`, accountID, hash)
	return tag.RowsAffected() == 1, err
}
