package renewals

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceRole is the role claim required on service tokens.
const ServiceRole = "service_role"

// ErrInvalidToken is returned for missing, malformed or non-service tokens.
var ErrInvalidToken = errors.New("invalid service token")

// TokenVerifier checks HS256 service-role bearer tokens.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier constructs a verifier. An empty secret rejects every token.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses the token and checks its signature, expiry and role claim.
func (v *TokenVerifier) Verify(raw string) error {
	if v == nil || len(v.secret) == 0 || raw == "" {
		return ErrInvalidToken
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	if role, _ := claims["role"].(string); role != ServiceRole {
		return ErrInvalidToken
	}
	return nil
}

// IssueServiceToken signs a service-role token valid for ttl.
func IssueServiceToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("renewals: service role secret is empty")
	}
	claims := jwt.MapClaims{
		"role": ServiceRole,
		"sub":  subject,
		"iat":  now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
