package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"github.com/ErlanBelekov/medico-billing/internal/metrics"
	"github.com/ErlanBelekov/medico-billing/internal/password"
	"github.com/ErlanBelekov/medico-billing/internal/ratelimit"
)

// AttemptLimiter is satisfied by *ratelimit.Limiter and ratelimit.Noop.
type AttemptLimiter interface {
	Check(ctx context.Context, key string) error
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// SessionIssuer is satisfied by *session.Issuer.
type SessionIssuer interface {
	Mint(user *domain.User) (string, time.Time, error)
	Refresh(user *domain.User) (string, time.Time, error)
}

type SignInResult struct {
	OTPDispatched bool
}

// Session is an authenticated user together with a freshly signed token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

type ResetPasswordInput struct {
	Email           string
	Code            string
	NewPassword     string
	ConfirmPassword string
}

// AuthUsecase drives the signin, signup and password reset flows.
type AuthUsecase struct {
	creds    *CredentialUsecase
	codes    *PasscodeUsecase
	sessions SessionIssuer

	signinAttempts AttemptLimiter
	otpAttempts    AttemptLimiter

	logger *slog.Logger
}

type AuthOption func(*AuthUsecase)

// WithLimiters throttles failed password and passcode attempts.
func WithLimiters(signin, otp AttemptLimiter) AuthOption {
	return func(u *AuthUsecase) {
		u.signinAttempts = signin
		u.otpAttempts = otp
	}
}

func NewAuthUsecase(creds *CredentialUsecase, codes *PasscodeUsecase, sessions SessionIssuer, logger *slog.Logger, opts ...AuthOption) *AuthUsecase {
	u := &AuthUsecase{
		creds:          creds,
		codes:          codes,
		sessions:       sessions,
		signinAttempts: ratelimit.Noop{},
		otpAttempts:    ratelimit.Noop{},
		logger:         logger.With("component", "auth"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// SignUp registers an account. It neither issues a passcode nor a session.
func (u *AuthUsecase) SignUp(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	return u.creds.Create(ctx, in)
}

// SignIn checks the password and, on success, emails a signin passcode.
func (u *AuthUsecase) SignIn(ctx context.Context, addr, password string) (SignInResult, error) {
	key := normalizeEmail(addr)
	if err := u.allow(ctx, u.signinAttempts, key); err != nil {
		metrics.SigninTotal.WithLabelValues("throttled").Inc()
		return SignInResult{}, err
	}

	user, err := u.creds.VerifyCredentials(ctx, addr, password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			metrics.SigninTotal.WithLabelValues("invalid_password").Inc()
			u.fail(ctx, u.signinAttempts, key)
		case errors.Is(err, domain.ErrUserNotFound):
			metrics.SigninTotal.WithLabelValues("unknown_email").Inc()
			u.fail(ctx, u.signinAttempts, key)
		}
		return SignInResult{}, err
	}
	metrics.SigninTotal.WithLabelValues("ok").Inc()
	u.reset(ctx, u.signinAttempts, key)

	dispatched, err := u.codes.Issue(ctx, user.Email, domain.PurposeSignin)
	if err != nil {
		return SignInResult{}, err
	}
	return SignInResult{OTPDispatched: dispatched}, nil
}

// VerifySigninOTP consumes the signin passcode and mints a session.
func (u *AuthUsecase) VerifySigninOTP(ctx context.Context, addr, code string) (*Session, error) {
	if err := u.verifyPasscode(ctx, addr, domain.PurposeSignin, code, true); err != nil {
		return nil, err
	}

	user, err := u.creds.FindByEmail(ctx, addr)
	if err != nil {
		return nil, err
	}
	return u.mint(user, u.sessions.Mint)
}

// SendResetOTP emails a reset passcode to an active account.
func (u *AuthUsecase) SendResetOTP(ctx context.Context, addr string) error {
	user, err := u.creds.FindByEmail(ctx, addr)
	if err != nil {
		return err
	}

	dispatched, err := u.codes.Issue(ctx, user.Email, domain.PurposeReset)
	if err != nil {
		return err
	}
	if !dispatched {
		return domain.ErrOTPNotSent
	}
	return nil
}

// VerifyResetOTP reports whether code is currently valid without consuming it,
// so the reset form can be submitted with the same code afterwards.
func (u *AuthUsecase) VerifyResetOTP(ctx context.Context, addr, code string) error {
	return u.verifyPasscode(ctx, addr, domain.PurposeReset, code, false)
}

// ResetPassword consumes the reset passcode and overwrites the password.
func (u *AuthUsecase) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if in.NewPassword != in.ConfirmPassword {
		return domain.ErrPasswordMismatch
	}
	// Rejected before the passcode is consumed so the code stays usable.
	if len(in.NewPassword) > password.MaxSecretBytes {
		return fmt.Errorf("%w: password exceeds %d bytes", domain.ErrValidation, password.MaxSecretBytes)
	}
	if err := u.verifyPasscode(ctx, in.Email, domain.PurposeReset, in.Code, true); err != nil {
		return err
	}
	return u.creds.ResetPassword(ctx, in.Email, in.NewPassword)
}

func (u *AuthUsecase) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	return u.creds.ChangePassword(ctx, userID, in)
}

// UpdateProfile applies the update and reissues the session from the stored record.
func (u *AuthUsecase) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*Session, error) {
	user, err := u.creds.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, err
	}
	return u.mint(user, u.sessions.Refresh)
}

func (u *AuthUsecase) Me(ctx context.Context, userID string) (*domain.User, error) {
	return u.creds.FindByID(ctx, userID)
}

func (u *AuthUsecase) verifyPasscode(ctx context.Context, addr string, purpose domain.Purpose, code string, consume bool) error {
	key := string(purpose) + ":" + normalizeEmail(addr)
	if err := u.allow(ctx, u.otpAttempts, key); err != nil {
		return err
	}

	var err error
	if consume {
		err = u.codes.Verify(ctx, addr, purpose, code)
	} else {
		err = u.codes.Check(ctx, addr, purpose, code)
	}
	switch {
	case err == nil:
		if consume {
			u.reset(ctx, u.otpAttempts, key)
		}
	case errors.Is(err, domain.ErrPasscodeInvalid), errors.Is(err, domain.ErrPasscodeExpired):
		u.fail(ctx, u.otpAttempts, key)
	}
	return err
}

func (u *AuthUsecase) mint(user *domain.User, sign func(*domain.User) (string, time.Time, error)) (*Session, error) {
	token, expiresAt, err := sign(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// allow fails open when the limiter backend is unreachable.
func (u *AuthUsecase) allow(ctx context.Context, l AttemptLimiter, key string) error {
	err := l.Check(ctx, key)
	if err == nil || errors.Is(err, domain.ErrRateLimited) {
		return err
	}
	u.logger.WarnContext(ctx, "attempt limiter unavailable", "error", err)
	return nil
}

func (u *AuthUsecase) fail(ctx context.Context, l AttemptLimiter, key string) {
	if err := l.Fail(ctx, key); err != nil {
		u.logger.WarnContext(ctx, "record failed attempt", "error", err)
	}
}

func (u *AuthUsecase) reset(ctx context.Context, l AttemptLimiter, key string) {
	if err := l.Reset(ctx, key); err != nil {
		u.logger.WarnContext(ctx, "reset attempt counter", "error", err)
	}
}
