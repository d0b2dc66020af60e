package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignParse(t *testing.T) {
	v := NewVerifier("s3cret")
	want := Identity{ID: uuid.New(), Role: RoleSalon}

	tok, err := v.Sign(want, time.Minute)
	require.NoError(t, err)

	got, err := v.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseRejects(t *testing.T) {
	v := NewVerifier("s3cret")

	expired, err := v.Sign(Identity{ID: uuid.New(), Role: RoleUser}, -time.Minute)
	require.NoError(t, err)

	foreign, err := NewVerifier("other").Sign(Identity{ID: uuid.New(), Role: RoleUser}, time.Minute)
	require.NoError(t, err)

	badRole, err := v.Sign(Identity{ID: uuid.New(), Role: "root"}, time.Minute)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "42"},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":     expired,
		"foreign":     foreign,
		"bad role":    badRole,
		"bad subject": badSubject,
		"alg none":    none,
		"garbage":     "not-a-token",
	} {
		_, err := v.Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}
