package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_IssueAndParse(t *testing.T) {
	a := NewAuth("secret", "wallet-ledger")

	tok, err := a.IssueToken("user-42", time.Hour)
	require.NoError(t, err)

	user, err := a.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-42", string(user))

	_, err = a.IssueToken("", time.Hour)
	assert.Error(t, err)
}

func TestAuth_RejectsExpiredToken(t *testing.T) {
	// GIVEN: A token issued two hours ago with a one hour ttl
	a := NewAuth("secret", "wallet-ledger")
	issued := time.Date(2025, 8, 13, 8, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return issued }
	tok, err := a.IssueToken("user-42", time.Hour)
	require.NoError(t, err)

	// WHEN: Parsing it now
	a.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = a.ParseToken(tok)

	// THEN: It is expired
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAuth_RejectsWrongIssuerAndAlgorithm(t *testing.T) {
	a := NewAuth("secret", "wallet-ledger")

	other := NewAuth("secret", "someone-else")
	tok, err := other.IssueToken("user-42", time.Hour)
	require.NoError(t, err)
	_, err = a.ParseToken(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	// HS384 with the right key is still refused
	claims := jwt.RegisteredClaims{
		Subject:   "user-42",
		Issuer:    "wallet-ledger",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err = jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = a.ParseToken(tok)
	assert.Error(t, err)

	// No expiry
	claims.ExpiresAt = nil
	tok, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = a.ParseToken(tok)
	assert.Error(t, err)
}

func TestAuth_MiddlewareSetsUser(t *testing.T) {
	a := NewAuth("secret", "wallet-ledger")
	tok, err := a.IssueToken("user-42", time.Hour)
	require.NoError(t, err)

	var got string
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserFrom(r.Context())
		require.True(t, ok)
		got = string(id)
	}))

	for _, header := range []string{"Bearer " + tok, "bearer " + tok} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-42", got)
	}

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer not.a.jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}

	_, ok := UserFrom(context.Background())
	assert.False(t, ok)
}
