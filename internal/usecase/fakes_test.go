package usecase_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"github.com/ErlanBelekov/medico-billing/internal/email"
	"github.com/ErlanBelekov/medico-billing/internal/password"
	"github.com/ErlanBelekov/medico-billing/internal/session"
	"github.com/ErlanBelekov/medico-billing/internal/usecase"
	"golang.org/x/crypto/bcrypt"
)

// ---- in-memory user store ----

type memUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	nextID int

	updatePasswordCalls int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*domain.User{}}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if !u.IsDeleted && u.Email == user.Email {
			return nil, domain.ErrConflict
		}
	}
	r.nextID++
	cp := *user
	cp.ID = fmt.Sprintf("user-%d", r.nextID)
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.IsDeleted {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if !u.IsDeleted && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) List(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.users {
		if !u.IsDeleted {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memUserRepo) UpdateProfile(_ context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.IsDeleted {
		return nil, domain.ErrUserNotFound
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.Name, update.Name)
	set(&u.Email, update.Email)
	set(&u.Phone, update.Phone)
	set(&u.Address, update.Address)
	set(&u.City, update.City)
	set(&u.State, update.State)
	set(&u.Pincode, update.Pincode)
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) UpdateByAdmin(_ context.Context, id string, update domain.AdminUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.IsDeleted {
		return nil, domain.ErrUserNotFound
	}
	u.Name, u.Email, u.Role = update.Name, update.Email, update.Role
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updatePasswordCalls++
	u, ok := r.users[id]
	if !ok || u.IsDeleted {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *memUserRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.IsDeleted {
		return domain.ErrUserNotFound
	}
	u.IsDeleted = true
	return nil
}

func (r *memUserRepo) hashOf(t *testing.T, email string) string {
	t.Helper()
	u, err := r.FindByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("find %s: %v", email, err)
	}
	return u.PasswordHash
}

// ---- in-memory passcode store ----

type memPasscodeRepo struct {
	mu     sync.Mutex
	codes  map[string]*domain.Passcode
	nextID int
}

func newMemPasscodeRepo() *memPasscodeRepo {
	return &memPasscodeRepo{codes: map[string]*domain.Passcode{}}
}

func pairKey(email string, purpose domain.Purpose) string {
	return string(purpose) + "|" + email
}

func (r *memPasscodeRepo) Replace(_ context.Context, p *domain.Passcode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = fmt.Sprintf("code-%d", r.nextID)
	cp := *p
	r.codes[pairKey(p.Email, p.Purpose)] = &cp
	return nil
}

func (r *memPasscodeRepo) Latest(_ context.Context, email string, purpose domain.Purpose) (*domain.Passcode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.codes[pairKey(email, purpose)]
	if !ok {
		return nil, domain.ErrPasscodeInvalid
	}
	cp := *p
	return &cp, nil
}

func (r *memPasscodeRepo) Consume(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, p := range r.codes {
		if p.ID == id {
			delete(r.codes, k)
			return nil
		}
	}
	return domain.ErrPasscodeInvalid
}

func (r *memPasscodeRepo) DeleteAll(_ context.Context, email string, purpose domain.Purpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, pairKey(email, purpose))
	return nil
}

func (r *memPasscodeRepo) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, p := range r.codes {
		if p.ExpireAt.Before(before) {
			delete(r.codes, k)
			n++
		}
	}
	return n, nil
}

func (r *memPasscodeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

// ---- email ----

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sentEmail
}

type sentEmail struct {
	to, subject, body, purpose string
}

func (s *fakeSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{to: msg.To, subject: msg.Subject, body: msg.HTML, purpose: msg.Tags["purpose"]})
	return nil
}

// ---- clock ----

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// ---- harness ----

const (
	testSecret = "usecase-test-secret-at-least-32-chars"
	testCode   = "482913"
)

var t0 = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type harness struct {
	users  *memUserRepo
	codes  *memPasscodeRepo
	sender *fakeSender
	clock  *fakeClock
	issuer *session.Issuer

	creds    *usecase.CredentialUsecase
	passcode *usecase.PasscodeUsecase
	auth     *usecase.AuthUsecase
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, opts ...usecase.AuthOption) *harness {
	t.Helper()
	h := &harness{
		users:  newMemUserRepo(),
		codes:  newMemPasscodeRepo(),
		sender: &fakeSender{},
		clock:  &fakeClock{now: t0},
	}

	iss, err := session.NewIssuer(session.Config{Secret: []byte(testSecret), Clock: h.clock.Now})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	h.issuer = iss

	hasher := password.NewHasher(bcrypt.MinCost)
	logger := discardLogger()
	h.creds = usecase.NewCredentialUsecase(h.users, hasher)
	h.passcode = usecase.NewPasscodeUsecase(h.codes, hasher, h.sender, logger,
		usecase.WithClock(h.clock.Now),
		usecase.WithCodeGenerator(func() (string, error) { return testCode, nil }),
	)
	h.auth = usecase.NewAuthUsecase(h.creds, h.passcode, h.issuer, logger, opts...)
	return h
}

func (h *harness) signUp(t *testing.T, email, pw string) *domain.User {
	t.Helper()
	u, err := h.auth.SignUp(context.Background(), usecase.CreateUserInput{
		Name:     "Test Pharmacist",
		Email:    email,
		Password: pw,
		Role:     domain.RoleUser,
	})
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return u
}

type senderFunc func(ctx context.Context, msg email.Message) error

func (f senderFunc) Send(ctx context.Context, msg email.Message) error {
	return f(ctx, msg)
}

func newPasscodeWithSender(h *harness, sender email.Sender) *usecase.PasscodeUsecase {
	return usecase.NewPasscodeUsecase(h.codes, password.NewHasher(bcrypt.MinCost), sender, discardLogger(),
		usecase.WithClock(h.clock.Now),
		usecase.WithCodeGenerator(func() (string, error) { return testCode, nil }),
	)
}
