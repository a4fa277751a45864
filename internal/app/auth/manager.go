// Package auth issues and validates the JWT tokens used by the admin API.
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	svcerrors "github.com/refit-labs/staking-engine/internal/errors"
)

// User is a static credential the manager accepts at login.
type User struct {
	Username string
	Password string
	Role     string
}

// Claims are the token claims issued by the manager.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and validates HS256 tokens for a static user set.
type Manager struct {
	secret []byte
	users  map[string]User
	ttl    time.Duration
}

// NewManager creates a manager. An empty secret disables login and
// validation.
func NewManager(secret string, users []User) *Manager {
	byName := make(map[string]User, len(users))
	for _, u := range users {
		if u.Username != "" {
			byName[u.Username] = u
		}
	}
	return &Manager{
		secret: []byte(strings.TrimSpace(secret)),
		users:  byName,
		ttl:    24 * time.Hour,
	}
}

// Enabled reports whether the manager can issue tokens.
func (m *Manager) Enabled() bool {
	return m != nil && len(m.secret) > 0
}

// Login verifies the credentials and returns a signed token.
func (m *Manager) Login(username, password string) (string, error) {
	if !m.Enabled() {
		return "", svcerrors.Unauthorized("login disabled")
	}

	user, ok := m.users[username]
	if !ok || subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return "", svcerrors.Unauthorized("invalid credentials")
	}

	now := time.Now().UTC()
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Subject:   user.Username,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns its claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	if !m.Enabled() {
		return nil, svcerrors.Unauthorized("token validation disabled")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, svcerrors.Unauthorized("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, svcerrors.Unauthorized("invalid token")
	}
	return claims, nil
}

// IsAdmin reports whether the claims carry the admin role. Authorization is a
// typed role check, never a raw string comparison in handlers.
func (m *Manager) IsAdmin(claims *Claims) bool {
	return claims != nil && claims.Role == "admin"
}
