package domain

import (
	"errors"
	"time"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordMismatch   = errors.New("password confirmation does not match")

	ErrPasscodeInvalid = errors.New("passcode is invalid")
	ErrPasscodeExpired = errors.New("passcode has expired")
	ErrOTPNotSent      = errors.New("passcode email could not be sent")
	ErrRateLimited     = errors.New("too many attempts")

	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("token is invalid or expired")
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is an identity record. PasswordHash never leaves the service layer.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Phone        string
	Address      string
	City         string
	State        string
	Pincode      string
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileUpdate carries a partial profile. A nil field was not supplied;
// a pointer to "" clears the stored value.
type ProfileUpdate struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
	City    *string
	State   *string
	Pincode *string
}

func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Address == nil &&
		p.City == nil && p.State == nil && p.Pincode == nil
}

// AdminUpdate is the set of fields an administrator may change on any account.
type AdminUpdate struct {
	Name  string
	Email string
	Role  Role
}

type Purpose string

const (
	PurposeSignin Purpose = "signin"
	PurposeReset  Purpose = "reset"
)

func (p Purpose) Valid() bool {
	return p == PurposeSignin || p == PurposeReset
}

// Passcode is one outstanding one-time code for an (email, purpose) pair.
type Passcode struct {
	ID        string
	Email     string
	CodeHash  string
	Purpose   Purpose
	ExpireAt  time.Time
	CreatedAt time.Time
}

func (p *Passcode) Expired(now time.Time) bool {
	return now.After(p.ExpireAt)
}
