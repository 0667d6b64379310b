package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"github.com/ErlanBelekov/medico-billing/internal/repository"
)

// SecretHasher is satisfied by *password.Hasher.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) (bool, error)
}

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	Phone    string
	Address  string
	City     string
	State    string
	Pincode  string
}

type ChangePasswordInput struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

// CredentialUsecase owns identity records and their password hashes.
type CredentialUsecase struct {
	users  repository.UserRepository
	hasher SecretHasher
}

func NewCredentialUsecase(users repository.UserRepository, hasher SecretHasher) *CredentialUsecase {
	return &CredentialUsecase{users: users, hasher: hasher}
}

func (u *CredentialUsecase) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, in.Role)
	}
	email := normalizeEmail(in.Email)

	_, err := u.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, domain.ErrConflict
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// The partial unique index still catches a concurrent signup for the same email.
	user, err := u.users.Create(ctx, &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		Phone:        in.Phone,
		Address:      in.Address,
		City:         in.City,
		State:        in.State,
		Pincode:      in.Pincode,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// VerifyCredentials returns the active user whose password matches.
func (u *CredentialUsecase) VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	ok, err := u.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (u *CredentialUsecase) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return u.users.FindByID(ctx, id)
}

func (u *CredentialUsecase) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return u.users.FindByEmail(ctx, normalizeEmail(email))
}

func (u *CredentialUsecase) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", domain.ErrValidation)
		}
		update.Email = &email

		other, err := u.users.FindByEmail(ctx, email)
		switch {
		case err == nil && other.ID != id:
			return nil, domain.ErrConflict
		case err != nil && !errors.Is(err, domain.ErrUserNotFound):
			return nil, fmt.Errorf("find user: %w", err)
		}
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrValidation)
	}

	return u.users.UpdateProfile(ctx, id, update)
}

// ChangePassword rejects a confirmation mismatch before touching the store.
func (u *CredentialUsecase) ChangePassword(ctx context.Context, id string, in ChangePasswordInput) error {
	if in.NewPassword != in.ConfirmPassword {
		return domain.ErrPasswordMismatch
	}

	user, err := u.users.FindByID(ctx, id)
	if err != nil {
		return err
	}

	ok, err := u.hasher.Compare(user.PasswordHash, in.OldPassword)
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return domain.ErrInvalidCredentials
	}

	return u.setPassword(ctx, user.ID, in.NewPassword)
}

// ResetPassword overwrites the password of the active user with email.
// Callers must have verified a reset passcode first.
func (u *CredentialUsecase) ResetPassword(ctx context.Context, email, newPassword string) error {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	return u.setPassword(ctx, user.ID, newPassword)
}

func (u *CredentialUsecase) setPassword(ctx context.Context, id, secret string) error {
	hash, err := u.hasher.Hash(secret)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return u.users.UpdatePasswordHash(ctx, id, hash)
}

func (u *CredentialUsecase) List(ctx context.Context) ([]*domain.User, error) {
	return u.users.List(ctx)
}

func (u *CredentialUsecase) UpdateByAdmin(ctx context.Context, id string, update domain.AdminUpdate) (*domain.User, error) {
	if !update.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, update.Role)
	}
	update.Email = normalizeEmail(update.Email)
	update.Name = strings.TrimSpace(update.Name)

	other, err := u.users.FindByEmail(ctx, update.Email)
	switch {
	case err == nil && other.ID != id:
		return nil, domain.ErrConflict
	case err != nil && !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("find user: %w", err)
	}

	return u.users.UpdateByAdmin(ctx, id, update)
}

func (u *CredentialUsecase) Delete(ctx context.Context, id string) error {
	return u.users.SoftDelete(ctx, id)
}

// normalizeEmail trims surrounding whitespace. Case is kept: addresses are
// matched exactly as stored.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
