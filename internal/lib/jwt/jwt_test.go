package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidshare/internal/domain/models"
)

const (
	accessSecret  = "access-secret"
	refreshSecret = "refresh-secret"
)

func newCodec(t *testing.T, secret string, ttl time.Duration) *Codec {
	t.Helper()
	c, err := NewCodec(secret, ttl)
	require.NoError(t, err)
	return c
}

func TestIssueVerify(t *testing.T) {
	c := newCodec(t, accessSecret, 15*time.Minute)

	profile := models.Profile{
		ID:       gofakeit.UUID(),
		Username: gofakeit.Username(),
		Email:    gofakeit.Email(),
		FullName: gofakeit.Name(),
	}

	issuedAt := time.Now()
	token, err := c.Issue(AccessClaims(profile))
	require.NoError(t, err)

	claims, err := c.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, claims.UserID)
	assert.Equal(t, profile.Username, claims.Username)
	assert.Equal(t, profile.Email, claims.Email)
	assert.Equal(t, profile.FullName, claims.FullName)
	assert.NotEmpty(t, claims.ID)

	const deltaSeconds = 1
	assert.InDelta(t, issuedAt.Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix(), deltaSeconds)
}

func TestIssueProducesDistinctTokens(t *testing.T) {
	c := newCodec(t, refreshSecret, time.Hour)

	first, err := c.Issue(RefreshClaims("u1"))
	require.NoError(t, err)
	second, err := c.Issue(RefreshClaims("u1"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyExpired(t *testing.T) {
	c := newCodec(t, accessSecret, -time.Minute)

	token, err := c.Issue(RefreshClaims("u1"))
	require.NoError(t, err)

	_, err = c.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_FailCases(t *testing.T) {
	access := newCodec(t, accessSecret, time.Hour)
	refresh := newCodec(t, refreshSecret, time.Hour)

	refreshToken, err := refresh.Issue(RefreshClaims("u1"))
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u1"}).
		SignedString([]byte(accessSecret))
	require.NoError(t, err)

	noSubject, err := access.Issue(Claims{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "invalid-token-that-does-not-exist"},
		{name: "refresh token against access key", token: refreshToken},
		{name: "alg none", token: noneToken},
		{name: "missing expiry", token: noExpiry},
		{name: "missing uid", token: noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := access.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

// Every single-character substitution must be rejected, never accepted with
// altered claims.
func TestVerifyDetectsAnyTampering(t *testing.T) {
	c := newCodec(t, accessSecret, time.Hour)

	token, err := c.Issue(AccessClaims(models.Profile{
		ID:       "65f0c0ffee",
		Username: "alice",
		Email:    "alice@x.com",
		FullName: "Alice",
	}))
	require.NoError(t, err)

	for i := range token {
		replacement := "A"
		if token[i] == 'A' {
			replacement = "B"
		}
		tampered := token[:i] + replacement + token[i+1:]

		_, err := c.Verify(tampered)
		require.ErrorIs(t, err, ErrInvalidSignature, "position %d accepted", i)
	}

	_, err = c.Verify(strings.TrimSuffix(token, token[len(token)-1:]))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec("", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}
