package token_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/token"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return raw
}

func TestDecode_Claims(t *testing.T) {
	raw := sign(t, jwt.MapClaims{
		"user_id":    "u-1",
		"company_id": "c-1",
		"subdomain":  "acme",
		"role":       "admin",
		"exp":        now.Add(time.Hour).Unix(),
	})

	cred, err := token.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "u-1", cred.Claims.User())
	require.Equal(t, "c-1", cred.Claims.CompanyID)
	require.Equal(t, "acme", cred.Claims.Subdomain)
	require.True(t, cred.Valid(now))
}

func TestDecode_SubjectFallback(t *testing.T) {
	cred, err := token.Decode(sign(t, jwt.MapClaims{"sub": "u-9", "exp": now.Add(time.Hour).Unix()}))
	require.NoError(t, err)
	require.Equal(t, "u-9", cred.Claims.User())
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"bad segments", "a.b.c"},
		{"missing exp", sign(t, jwt.MapClaims{"user_id": "u-1"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := token.Decode(tt.raw)
			require.Nil(t, cred)
			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})
	}
}

func TestValid_StrictExpiry(t *testing.T) {
	tests := []struct {
		name  string
		exp   time.Time
		valid bool
	}{
		{"future", now.Add(time.Second), true},
		{"same second", now, false},
		{"same second later nanos", now.Add(500 * time.Millisecond), false},
		{"past", now.Add(-time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := token.Decode(sign(t, jwt.MapClaims{"user_id": "u-1", "exp": tt.exp.Unix()}))
			require.NoError(t, err)
			require.Equal(t, tt.valid, cred.Valid(now))
		})
	}
}

func TestValid_NilCredential(t *testing.T) {
	var cred *token.Credential
	require.False(t, cred.Valid(now))
}

func TestOAuth2Token_SetsBearerHeader(t *testing.T) {
	raw := sign(t, jwt.MapClaims{"user_id": "u-1", "exp": now.Add(time.Hour).Unix()})
	cred, err := token.Decode(raw)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)
	cred.OAuth2Token().SetAuthHeader(req)

	require.Equal(t, "Bearer "+raw, req.Header.Get("Authorization"))
}
