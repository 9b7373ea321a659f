package renewals

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenVerifier(t *testing.T) {
	now := time.Now()
	verifier := NewTokenVerifier("s3cret")

	valid, err := IssueServiceToken("s3cret", "scheduler", time.Hour, now)
	require.NoError(t, err)
	require.NoError(t, verifier.Verify(valid))

	expired, err := IssueServiceToken("s3cret", "scheduler", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	require.ErrorIs(t, verifier.Verify(expired), ErrInvalidToken)

	wrongSecret, err := IssueServiceToken("other", "scheduler", time.Hour, now)
	require.NoError(t, err)
	require.ErrorIs(t, verifier.Verify(wrongSecret), ErrInvalidToken)

	anonRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "anon"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	require.ErrorIs(t, verifier.Verify(anonRole), ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"role": ServiceRole}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	require.ErrorIs(t, verifier.Verify(hs512), ErrInvalidToken)

	require.ErrorIs(t, verifier.Verify(""), ErrInvalidToken)
	require.ErrorIs(t, NewTokenVerifier("").Verify(valid), ErrInvalidToken)

	_, err = IssueServiceToken("", "x", time.Hour, now)
	require.Error(t, err)
}
