// Package auth issues and verifies the HS256 bearer tokens carried by API
// callers.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"hotel_booking/internal/domain"
)

const accessType = "access"

type Claims struct {
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (m *Manager) Generate(userID string, role domain.Role) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: subject is required", domain.ErrValidation)
	}
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	now := m.now().UTC()
	claims := Claims{
		Role:      string(role),
		TokenType: accessType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify returns the caller for a valid, unexpired access token. Every
// failure wraps domain.ErrUnauthorized.
func (m *Manager) Verify(raw string) (domain.Principal, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Principal{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	if claims.TokenType != accessType {
		return domain.Principal{}, fmt.Errorf("%w: invalid token type", domain.ErrUnauthorized)
	}
	role := domain.Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return domain.Principal{}, fmt.Errorf("%w: token carries no usable identity", domain.ErrUnauthorized)
	}
	return domain.Principal{UserID: claims.Subject, Role: role}, nil
}
