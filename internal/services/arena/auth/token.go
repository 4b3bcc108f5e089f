// Package auth mints and verifies the bearer tokens that tie a
// websocket connection to a durable account, and hashes account
// passwords.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long a minted token stays valid.
const TokenTTL = 24 * time.Hour

// ErrInvalidToken signals a token that failed verification for any
// reason: bad signature, wrong algorithm, expiry, or missing claims.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the validated identity carried by a token.
type Claims struct {
	UserID   string
	Username string
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// TokenManager mints and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager builds a manager around a shared secret. The now
// func defaults to time.Now and exists for tests.
func NewTokenManager(secret string, now func() time.Time) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenManager{secret: []byte(secret), now: now}, nil
}

// Mint issues a signed token for the given account.
func (m *TokenManager) Mint(userID, username string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}
	issuedAt := m.now().UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(TokenTTL)),
		},
		Username: username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the identity it carries.
func (m *TokenManager) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: parsed.Subject, Username: parsed.Username}, nil
}
