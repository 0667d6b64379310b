// Package session mints and verifies the signed session token that is
// carried in an HTTP-only cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTTL        = 24 * time.Hour
	DefaultCookieName = "Auth_Token"
)

// Claims is a snapshot of the identity at issuance time.
type Claims struct {
	UserID  string      `json:"id"`
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Role    domain.Role `json:"role"`
	Phone   string      `json:"phone"`
	Address string      `json:"address"`
	City    string      `json:"city"`
	State   string      `json:"state"`
	Pincode string      `json:"pincode"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret     []byte
	TTL        time.Duration
	CookieName string
	// Secure adds the Secure attribute; off for plain-HTTP local development.
	Secure bool
	Clock  func() time.Time
}

type Issuer struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session: secret must be provided")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &Issuer{
		secret:     cfg.Secret,
		ttl:        ttl,
		cookieName: name,
		secure:     cfg.Secure,
		now:        now,
	}, nil
}

// Mint signs a token carrying the user's current identity fields.
func (i *Issuer) Mint(user *domain.User) (string, time.Time, error) {
	if user == nil || user.ID == "" {
		return "", time.Time{}, errors.New("session: user id is required")
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := &Claims{
		UserID:  user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Role:    user.Role,
		Phone:   user.Phone,
		Address: user.Address,
		City:    user.City,
		State:   user.State,
		Pincode: user.Pincode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Refresh reissues a token after claim-relevant fields changed.
func (i *Issuer) Refresh(user *domain.User) (string, time.Time, error) {
	return i.Mint(user)
}

// Verify checks signature, algorithm and expiry.
func (i *Issuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	var claims Claims
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, domain.ErrInvalidToken
	}
	return &claims, nil
}

func (i *Issuer) CookieName() string {
	return i.cookieName
}

// SetCookie writes the session cookie: HttpOnly, SameSite=Lax, scoped to "/".
func (i *Issuer) SetCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(i.cookieName, token, int(i.ttl.Seconds()), "/", "", i.secure, true)
}

func (i *Issuer) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(i.cookieName, "", -1, "/", "", i.secure, true)
}
