// Package token issues and verifies the HS256 bearer tokens handed out at login.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fastygo/taskboard/domain"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = time.Hour

// Config controls signing. Secret is required.
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// claims is the JWT payload; user_id duplicates sub for older clients.
type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Manager signs and validates tokens with a single process-wide secret.
// Changing the secret invalidates every outstanding token.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewManager builds a Manager from cfg.
func NewManager(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}, nil
}

// Issue mints a token for userID that expires after the configured TTL.
func (m *Manager) Issue(userID string) (*domain.AccessToken, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}
	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "sign token", err)
	}
	return &domain.AccessToken{
		Token:     signed,
		UserID:    userID,
		ExpiresAt: expiresAt.Truncate(time.Second),
	}, nil
}

// Verify checks the signature and expiry of raw and returns the embedded user
// id. It fails with domain.ErrTokenExpired past expiry and
// domain.ErrTokenInvalid for anything else.
func (m *Manager) Verify(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrTokenInvalid
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", mapJWTError(err)
	}

	// The library validates exp against the wall clock; re-check against the
	// injected clock so both sides of the manager agree.
	if parsed.ExpiresAt == nil {
		return "", domain.ErrTokenInvalid
	}
	if !parsed.ExpiresAt.Time.After(m.now()) {
		return "", domain.ErrTokenExpired
	}

	userID := parsed.UserID
	if userID == "" {
		userID = parsed.Subject
	}
	if strings.TrimSpace(userID) == "" {
		return "", domain.ErrTokenInvalid
	}
	return userID, nil
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return domain.ErrTokenExpired
	}
	return domain.ErrTokenInvalid
}
