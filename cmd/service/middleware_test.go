package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, userID, tokenType string, expiry time.Duration) string {
	t.Helper()
	claims := TokenClaims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

// echoIdentity reports what identity the handlers behind the middleware see.
func echoIdentity() (http.Handler, *string) {
	var seen string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-User-Id")
		w.WriteHeader(http.StatusOK)
	})
	return h, &seen
}

func TestIdentityMiddleware(t *testing.T) {
	t.Run("valid access token resolves identity", func(t *testing.T) {
		next, seen := echoIdentity()
		h := identityMiddleware(testSecret)(next)

		req := httptest.NewRequest("GET", "/setlists/sl1", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "u1", "access", time.Hour))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", *seen)
	})

	t.Run("anonymous request passes through blank", func(t *testing.T) {
		next, seen := echoIdentity()
		h := identityMiddleware(testSecret)(next)

		req := httptest.NewRequest("GET", "/setlists/sl1", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, *seen)
	})

	t.Run("client-supplied identity header is stripped", func(t *testing.T) {
		next, seen := echoIdentity()
		h := identityMiddleware(testSecret)(next)

		req := httptest.NewRequest("GET", "/setlists/sl1", nil)
		req.Header.Set("X-User-Id", "forged")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, *seen)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		next, _ := echoIdentity()
		h := identityMiddleware(testSecret)(next)

		req := httptest.NewRequest("GET", "/setlists/sl1", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "u1", "access", -time.Hour))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("refresh token cannot act as access token", func(t *testing.T) {
		next, _ := echoIdentity()
		h := identityMiddleware(testSecret)(next)

		req := httptest.NewRequest("GET", "/setlists/sl1", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "u1", "refresh", time.Hour))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed Authorization header", func(t *testing.T) {
		next, _ := echoIdentity()
		h := identityMiddleware(testSecret)(next)

		req := httptest.NewRequest("GET", "/setlists/sl1", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		next, _ := echoIdentity()
		h := identityMiddleware(testSecret)(next)

		req := httptest.NewRequest("GET", "/setlists/sl1", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestBodySizeLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := bodySizeLimitMiddleware(16)(next)

	t.Run("oversized declared body is rejected early", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/setlists", nil)
		req.ContentLength = 1 << 20
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("small body passes", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/setlists", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
