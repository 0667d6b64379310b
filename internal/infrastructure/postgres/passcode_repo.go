package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"github.com/jackc/pgx/v5"
)

type PasscodeRepository struct {
	db DBTX
}

func NewPasscodeRepository(db DBTX) *PasscodeRepository {
	return &PasscodeRepository{db: db}
}

// Replace upserts on the (email, purpose) unique index, so concurrent issuers
// can never leave two live rows for one pair. The id is regenerated so a
// Consume racing against a reissue cannot claim the new code.
func (r *PasscodeRepository) Replace(ctx context.Context, p *domain.Passcode) error {
	query := `
		INSERT INTO passcodes (email, purpose, code_hash, expire_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email, purpose) DO UPDATE
		SET    id         = gen_random_uuid(),
		       code_hash  = EXCLUDED.code_hash,
		       expire_at  = EXCLUDED.expire_at,
		       created_at = EXCLUDED.created_at
		RETURNING id`

	err := r.db.QueryRow(ctx, query, p.Email, p.Purpose, p.CodeHash, p.ExpireAt, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("replace passcode: %w", err)
	}
	return nil
}

func (r *PasscodeRepository) Latest(ctx context.Context, email string, purpose domain.Purpose) (*domain.Passcode, error) {
	query := `
		SELECT id, email, purpose, code_hash, expire_at, created_at
		FROM   passcodes
		WHERE  email = $1 AND purpose = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var p domain.Passcode
	err := r.db.QueryRow(ctx, query, email, purpose).Scan(
		&p.ID, &p.Email, &p.Purpose, &p.CodeHash, &p.ExpireAt, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPasscodeInvalid
		}
		return nil, fmt.Errorf("scan passcode: %w", err)
	}
	return &p, nil
}

func (r *PasscodeRepository) Consume(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM passcodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("consume passcode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPasscodeInvalid
	}
	return nil
}

func (r *PasscodeRepository) DeleteAll(ctx context.Context, email string, purpose domain.Purpose) error {
	_, err := r.db.Exec(ctx, `DELETE FROM passcodes WHERE email = $1 AND purpose = $2`, email, purpose)
	if err != nil {
		return fmt.Errorf("delete passcodes: %w", err)
	}
	return nil
}

func (r *PasscodeRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM passcodes WHERE expire_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired passcodes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
