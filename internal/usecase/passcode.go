package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"github.com/ErlanBelekov/medico-billing/internal/email"
	"github.com/ErlanBelekov/medico-billing/internal/metrics"
	"github.com/ErlanBelekov/medico-billing/internal/repository"
)

const (
	DefaultPasscodeTTL  = 3 * time.Minute
	DefaultEmailTimeout = 10 * time.Second

	passcodeDigits = 6
)

var passcodeSpace = big.NewInt(1_000_000)

// PasscodeUsecase issues and verifies one-time passcodes per (email, purpose).
type PasscodeUsecase struct {
	codes        repository.PasscodeRepository
	hasher       SecretHasher
	sender       email.Sender
	brand        email.Branding
	ttl          time.Duration
	emailTimeout time.Duration
	now          func() time.Time
	generate     func() (string, error)
	logger       *slog.Logger
}

type PasscodeOption func(*PasscodeUsecase)

func WithClock(now func() time.Time) PasscodeOption {
	return func(u *PasscodeUsecase) { u.now = now }
}

func WithPasscodeTTL(ttl time.Duration) PasscodeOption {
	return func(u *PasscodeUsecase) { u.ttl = ttl }
}

func WithEmailTimeout(d time.Duration) PasscodeOption {
	return func(u *PasscodeUsecase) { u.emailTimeout = d }
}

func WithBranding(b email.Branding) PasscodeOption {
	return func(u *PasscodeUsecase) { u.brand = b }
}

// WithCodeGenerator replaces the random code source. Tests only.
func WithCodeGenerator(gen func() (string, error)) PasscodeOption {
	return func(u *PasscodeUsecase) { u.generate = gen }
}

func NewPasscodeUsecase(codes repository.PasscodeRepository, hasher SecretHasher, sender email.Sender, logger *slog.Logger, opts ...PasscodeOption) *PasscodeUsecase {
	u := &PasscodeUsecase{
		codes:        codes,
		hasher:       hasher,
		sender:       sender,
		brand:        email.Branding{Name: "Medico Billing"},
		ttl:          DefaultPasscodeTTL,
		emailTimeout: DefaultEmailTimeout,
		now:          time.Now,
		generate:     generateCode,
		logger:       logger.With("component", "passcode"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Issue stores a fresh passcode for the pair, replacing any earlier one, and
// emails it. A delivery failure leaves the stored code in place and is
// reported as dispatched=false with a nil error.
func (u *PasscodeUsecase) Issue(ctx context.Context, addr string, purpose domain.Purpose) (bool, error) {
	if !purpose.Valid() {
		return false, fmt.Errorf("%w: unknown passcode purpose %q", domain.ErrValidation, purpose)
	}
	addr = normalizeEmail(addr)

	code, err := u.generate()
	if err != nil {
		return false, fmt.Errorf("generate passcode: %w", err)
	}
	hash, err := u.hasher.Hash(code)
	if err != nil {
		return false, fmt.Errorf("hash passcode: %w", err)
	}

	now := u.now()
	p := &domain.Passcode{
		Email:     addr,
		CodeHash:  hash,
		Purpose:   purpose,
		ExpireAt:  now.Add(u.ttl),
		CreatedAt: now,
	}
	if err := u.codes.Replace(ctx, p); err != nil {
		return false, fmt.Errorf("store passcode: %w", err)
	}
	metrics.OTPIssuedTotal.WithLabelValues(string(purpose)).Inc()

	if err := u.dispatch(ctx, addr, purpose, code); err != nil {
		metrics.OTPDispatchFailuresTotal.WithLabelValues(string(purpose)).Inc()
		u.logger.WarnContext(ctx, "passcode email not delivered",
			"purpose", purpose, "error", err)
		return false, nil
	}
	return true, nil
}

func (u *PasscodeUsecase) dispatch(ctx context.Context, to string, purpose domain.Purpose, code string) error {
	subject, body, err := email.RenderOTP(u.brand, email.OTPMessage{
		Code:         code,
		Purpose:      purposeAction(purpose),
		ValidMinutes: int(u.ttl / time.Minute),
	})
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, u.emailTimeout)
	defer cancel()
	return u.sender.Send(sendCtx, email.Message{
		To:      to,
		Subject: subject,
		HTML:    body,
		Tags:    map[string]string{"purpose": string(purpose)},
	})
}

// Verify checks code against the latest passcode for the pair and consumes it.
func (u *PasscodeUsecase) Verify(ctx context.Context, addr string, purpose domain.Purpose, code string) error {
	return u.verify(ctx, normalizeEmail(addr), purpose, code, true)
}

// Check is Verify without consumption. Expired codes are still removed.
func (u *PasscodeUsecase) Check(ctx context.Context, addr string, purpose domain.Purpose, code string) error {
	return u.verify(ctx, normalizeEmail(addr), purpose, code, false)
}

func (u *PasscodeUsecase) verify(ctx context.Context, addr string, purpose domain.Purpose, code string, consume bool) error {
	outcome := metrics.OTPVerifyTotal.MustCurryWith(map[string]string{"purpose": string(purpose)})

	p, err := u.codes.Latest(ctx, addr, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrPasscodeInvalid) {
			outcome.WithLabelValues("missing").Inc()
			return err
		}
		return fmt.Errorf("load passcode: %w", err)
	}

	if p.Expired(u.now()) {
		outcome.WithLabelValues("expired").Inc()
		if err := u.codes.DeleteAll(ctx, addr, purpose); err != nil {
			u.logger.WarnContext(ctx, "delete expired passcode", "purpose", purpose, "error", err)
		}
		return domain.ErrPasscodeExpired
	}

	ok, err := u.hasher.Compare(p.CodeHash, code)
	if err != nil {
		return fmt.Errorf("compare passcode: %w", err)
	}
	if !ok {
		outcome.WithLabelValues("invalid").Inc()
		return domain.ErrPasscodeInvalid
	}

	if consume {
		if err := u.codes.Consume(ctx, p.ID); err != nil {
			if errors.Is(err, domain.ErrPasscodeInvalid) {
				outcome.WithLabelValues("invalid").Inc()
			}
			return err
		}
		if err := u.codes.DeleteAll(ctx, addr, purpose); err != nil {
			u.logger.WarnContext(ctx, "delete remaining passcodes", "purpose", purpose, "error", err)
		}
	}

	outcome.WithLabelValues("ok").Inc()
	return nil
}

func purposeAction(p domain.Purpose) string {
	if p == domain.PurposeReset {
		return "reset your password"
	}
	return "complete your sign in"
}

// generateCode returns passcodeDigits uniformly random decimal digits.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, passcodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", passcodeDigits, n.Int64()), nil
}
