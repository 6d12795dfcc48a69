package federation

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// serviceTokenTTL bounds how long a signed service token is accepted.
const serviceTokenTTL = 5 * time.Minute

// TokenSource yields the bearer token for one backend call.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed API token issued by the backend.
type StaticToken string

// Token returns the configured token unchanged.
func (t StaticToken) Token() (string, error) {
	return string(t), nil
}

// SignedTokenSource mints short-lived HS256 tokens with a shared secret.
type SignedTokenSource struct {
	Secret  []byte
	Subject string
	Now     func() time.Time
}

// Token signs a fresh token.
// PRE: Secret is non-empty
// POST: Token carries sub, iat and exp claims
func (s SignedTokenSource) Token() (string, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	claims := jwt.MapClaims{
		"sub": s.Subject,
		"iat": now.Unix(),
		"exp": now.Add(serviceTokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}
