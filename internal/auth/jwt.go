// Package auth - jwt.go issues and verifies the session tokens handed out by
// key-login, signed with HS256 using a shared secret.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionIssuer = "recordstore"

// MinSessionSecretLength is the shortest secret accepted without a warning
const MinSessionSecretLength = 32

// SessionClaims represents the session JWT claims. Subject is the email.
type SessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// SessionIssuer signs and verifies session tokens.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionIssuer creates an issuer. An empty secret is replaced with a
// random one, which means sessions do not survive a restart.
func NewSessionIssuer(secret string, ttl time.Duration) (*SessionIssuer, error) {
	if secret == "" {
		generated, err := randomToken(32)
		if err != nil {
			return nil, err
		}
		secret = generated
		slog.Warn("auth.session.secret not set; using a generated secret, sessions will not persist across restarts")
	} else if len(secret) < MinSessionSecretLength {
		slog.Warn("auth.session.secret is shorter than recommended", "min_length", MinSessionSecretLength)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &SessionIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue creates a session token for email
func (s *SessionIssuer) Issue(email, role string) (string, error) {
	now := s.now()
	claims := &SessionClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    sessionIssuer,
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token
func (s *SessionIssuer) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid session token")
	}
	if claims.Email == "" {
		return nil, errors.New("session token has no email")
	}
	return claims, nil
}
