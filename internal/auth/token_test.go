package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	verifier, err := NewJWTVerifier([]byte("test-secret"))
	require.NoError(t, err)

	token, err := verifier.Generate("admin", time.Hour)
	require.NoError(t, err)

	subject, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)
}

func TestJWTVerifier_Expired(t *testing.T) {
	verifier, err := NewJWTVerifier([]byte("test-secret"))
	require.NoError(t, err)

	token, err := verifier.Generate("admin", -time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	signer, err := NewJWTVerifier([]byte("secret-a"))
	require.NoError(t, err)
	verifier, err := NewJWTVerifier([]byte("secret-b"))
	require.NoError(t, err)

	token, err := signer.Generate("admin", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_Garbage(t *testing.T) {
	verifier, err := NewJWTVerifier([]byte("test-secret"))
	require.NoError(t, err)

	_, err = verifier.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTVerifier_EmptySecret(t *testing.T) {
	_, err := NewJWTVerifier(nil)
	assert.Error(t, err)
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)

	assert.NoError(t, CheckPassword(hash, "hunter2"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrWrongPassword)
}

func TestAPICredential(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
		apiKey     string
		want       string
	}{
		{name: "anonymous", want: ""},
		{name: "bearer", authHeader: "Bearer uk_123", want: "uk_123"},
		{name: "api key header", apiKey: "uk_456", want: "uk_456"},
		{name: "bearer wins over api key", authHeader: "Bearer uk_123", apiKey: "uk_456", want: "uk_123"},
		{name: "malformed header ignored", authHeader: "Basic dXNlcg==", apiKey: "uk_456", want: "uk_456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/requests", nil)
			if tt.authHeader != "" {
				r.Header.Set("Authorization", tt.authHeader)
			}
			if tt.apiKey != "" {
				r.Header.Set("X-API-Key", tt.apiKey)
			}
			assert.Equal(t, tt.want, APICredential(r))
		})
	}
}
