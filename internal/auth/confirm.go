package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	confirmPurpose = "email_confirm"
	// ConfirmTTL bounds how long a confirmation link stays valid.
	ConfirmTTL = 48 * time.Hour
)

// ErrInvalidConfirmation covers malformed, expired and tampered links.
var ErrInvalidConfirmation = errors.New("invalid confirmation token")

type confirmClaims struct {
	Purpose string `json:"purpose"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// ConfirmTokens signs the e-mail confirmation links. A token names the user
// and the address it was sent to, so it stops working if the address changes.
type ConfirmTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewConfirmTokens constructs a signer keyed by secret.
func NewConfirmTokens(secret string) *ConfirmTokens {
	return &ConfirmTokens{secret: []byte(secret), ttl: ConfirmTTL, now: time.Now}
}

// Issue returns a signed token for user.
func (c *ConfirmTokens) Issue(user User) (string, error) {
	if len(c.secret) == 0 {
		return "", errors.New("auth: confirmation secret is empty")
	}
	now := c.now()
	claims := confirmClaims{
		Purpose: confirmPurpose,
		Email:   user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Parse verifies raw and returns the user id and e-mail it was issued for.
func (c *ConfirmTokens) Parse(raw string) (string, string, error) {
	if len(c.secret) == 0 || raw == "" {
		return "", "", ErrInvalidConfirmation
	}
	var claims confirmClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", "", ErrInvalidConfirmation
	}
	if claims.Purpose != confirmPurpose || claims.Subject == "" || claims.Email == "" {
		return "", "", ErrInvalidConfirmation
	}
	return claims.Subject, claims.Email, nil
}
