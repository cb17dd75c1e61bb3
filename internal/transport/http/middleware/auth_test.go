package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-employment-verify/internal/config"
	jwtinfra "github.com/go-employment-verify/internal/infrastructure/jwt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

type stubVerifier struct {
	claims *jwtinfra.Claims
	err    error
}

func (s stubVerifier) Verify(string) (*jwtinfra.Claims, error) { return s.claims, s.err }

func TestAuth_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		verifier stubVerifier
	}{
		{"missing header", "", stubVerifier{}},
		{"not bearer", "Basic dTpw", stubVerifier{}},
		{"verify fails", "Bearer x", stubVerifier{err: errors.New("bad signature")}},
		{"no user id", "Bearer x", stubVerifier{claims: &jwtinfra.Claims{Role: "user"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			Auth(tt.verifier)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

// newKeyPair writes a fresh RSA key pair under t.TempDir and returns a
// provider for it together with the private key.
func newKeyPair(t *testing.T) (*jwtinfra.Provider, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{
		Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key),
	}), 0600))
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}), 0600))

	p, err := jwtinfra.NewProvider(&config.Config{JWTPrivateKeyPath: privPath, JWTPublicKeyPath: pubPath, JWTExpiry: time.Hour})
	require.NoError(t, err)
	return p, key
}

func TestAuth_SignedTokenYieldsRequester(t *testing.T) {
	p, _ := newKeyPair(t)
	signed, err := p.Sign("u1", "user", "pro")
	require.NoError(t, err)

	var got struct {
		userID, role, tier string
		ok                 bool
	}
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, ok := RequesterFromContext(r.Context())
		got.userID, got.role, got.tier, got.ok = req.UserID, req.Role, req.Tier, ok
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	Auth(p)(capture).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, got.ok)
	assert.Equal(t, "u1", got.userID)
	assert.Equal(t, "user", got.role)
	assert.Equal(t, "pro", got.tier)
}

func TestAuth_ExpiredToken(t *testing.T) {
	p, key := newKeyPair(t)
	claims := &jwtinfra.Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequesterFromContext(t *testing.T) {
	_, ok := RequesterFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), &jwtinfra.Claims{UserID: "u1", Role: "admin", Tier: "free"})
	req, ok := RequesterFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", req.UserID)
	assert.True(t, req.IsAdmin())
}
