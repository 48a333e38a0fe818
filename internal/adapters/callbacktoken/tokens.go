// Package callbacktoken issues and verifies the per-job tokens workers
// present when reporting results.
package callbacktoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/target/console-api/internal/core"
	apperrors "github.com/target/console-api/internal/errors"
)

const issuer = "console-api"

// Signer mints HS256 tokens whose subject is the job id.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

var _ core.CallbackTokens = (*Signer)(nil)

// NewSigner returns a signer for key. Tokens expire after ttl.
func NewSigner(key string, ttl time.Duration) (*Signer, error) {
	if key == "" {
		return nil, errors.New("callback signing key is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{key: []byte(key), ttl: ttl, now: time.Now}, nil
}

// Issue mints a token bound to jobID.
func (s *Signer) Issue(jobID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   jobID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign callback token: %w", err)
	}
	return tok, nil
}

// Verify checks the signature, expiry and that the token was minted for jobID.
func (s *Signer) Verify(token, jobID string) error {
	if token == "" {
		return apperrors.Unauthorized("callback token required")
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(jobID),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "invalid callback token")
	}
	return nil
}
