package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
)

type PasscodeRepository interface {
	// Replace atomically swaps whatever is stored for (email, purpose) with p.
	Replace(ctx context.Context, p *domain.Passcode) error
	// Latest returns the most recently created passcode for the pair or ErrPasscodeInvalid.
	Latest(ctx context.Context, email string, purpose domain.Purpose) (*domain.Passcode, error)
	// Consume deletes one passcode by id. ErrPasscodeInvalid if it was already gone.
	Consume(ctx context.Context, id string) error
	DeleteAll(ctx context.Context, email string, purpose domain.Purpose) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
