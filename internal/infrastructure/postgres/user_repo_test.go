package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"github.com/ErlanBelekov/medico-billing/internal/infrastructure/postgres"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{
	"id", "name", "email", "password_hash", "role", "phone", "address", "city", "state",
	"pincode", "is_deleted", "created_at", "updated_at",
}

var userTS = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func userRow(mock pgxmock.PgxPoolIface, id, name, email string) *pgxmock.Rows {
	return mock.NewRows(userColumns).
		AddRow(id, name, email, "$2a$hash", "user", "", "", "Pune", "", "", false, userTS, userTS)
}

func TestUserCreate_UniqueViolationIsConflict(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewUserRepository(mock)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("Asha Verma", "a@x.com", "$2a$hash", domain.RoleUser, "", "", "", "", "").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &domain.User{
		Name: "Asha Verma", Email: "a@x.com", PasswordHash: "$2a$hash", Role: domain.RoleUser,
	})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestUserFindByEmail_ExactMatch(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .* FROM users WHERE email = \$1 AND NOT is_deleted`).
		WithArgs("A@x.com").
		WillReturnRows(userRow(mock, "u-1", "Asha Verma", "A@x.com"))

	u, err := repo.FindByEmail(context.Background(), "A@x.com")
	require.NoError(t, err)
	require.Equal(t, "A@x.com", u.Email)
	require.Equal(t, domain.RoleUser, u.Role)
	require.Equal(t, "Pune", u.City)
}

func TestUserFindByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs("7b0d3f5e-2c4a-4e8b-9f1d-6a2c8e4b1f09").
		WillReturnRows(mock.NewRows(userColumns))

	_, err := repo.FindByID(context.Background(), "7b0d3f5e-2c4a-4e8b-9f1d-6a2c8e4b1f09")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUser_MalformedIDIsNotFound(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewUserRepository(mock)
	invalid := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).WithArgs("abc").WillReturnError(invalid)
	_, err := repo.FindByID(context.Background(), "abc")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	mock.ExpectExec(`UPDATE users SET is_deleted = TRUE`).WithArgs("abc").WillReturnError(invalid)
	require.ErrorIs(t, repo.SoftDelete(context.Background(), "abc"), domain.ErrUserNotFound)

	mock.ExpectExec(`UPDATE users SET password_hash = \$2`).WithArgs("abc", "$2a$new").WillReturnError(invalid)
	require.ErrorIs(t, repo.UpdatePasswordHash(context.Background(), "abc", "$2a$new"), domain.ErrUserNotFound)
}

func TestUserUpdateProfile_WritesOnlySuppliedColumns(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewUserRepository(mock)

	email, city := "new@x.com", ""
	mock.ExpectQuery(`UPDATE users SET email = \$2, city = \$3, updated_at = NOW\(\) WHERE id = \$1 AND NOT is_deleted RETURNING`).
		WithArgs("u-1", "new@x.com", "").
		WillReturnRows(userRow(mock, "u-1", "Asha Verma", "new@x.com"))

	u, err := repo.UpdateProfile(context.Background(), "u-1", domain.ProfileUpdate{Email: &email, City: &city})
	require.NoError(t, err)
	require.Equal(t, "new@x.com", u.Email)
}

func TestUserUpdateProfile_EmptyUpdateReads(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs("u-1").
		WillReturnRows(userRow(mock, "u-1", "Asha Verma", "a@x.com"))

	u, err := repo.UpdateProfile(context.Background(), "u-1", domain.ProfileUpdate{})
	require.NoError(t, err)
	require.Equal(t, "a@x.com", u.Email)
}

func TestUserSoftDelete(t *testing.T) {
	mock := newMock(t)
	repo := postgres.NewUserRepository(mock)

	mock.ExpectExec(`UPDATE users SET is_deleted = TRUE`).
		WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.SoftDelete(context.Background(), "u-1"))

	mock.ExpectExec(`UPDATE users SET is_deleted = TRUE`).
		WithArgs("u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, repo.SoftDelete(context.Background(), "u-1"), domain.ErrUserNotFound)
}
