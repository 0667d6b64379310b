package repository

import (
	"context"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
)

// UserRepository only ever sees non-deleted users unless stated otherwise.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error)
	UpdateByAdmin(ctx context.Context, id string, update domain.AdminUpdate) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	SoftDelete(ctx context.Context, id string) error
}
