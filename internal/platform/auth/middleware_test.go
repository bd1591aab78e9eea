package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func signHS256(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "https://auth.example.org",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"translator"},
	}
}

// runJWT executes mw with the given Authorization header and returns the
// handler's view of the identity.
func runJWT(t *testing.T, mw echo.MiddlewareFunc, header string) (userID string, roles []string, err error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := echo.New().NewContext(req, httptest.NewRecorder())
	err = mw(func(c echo.Context) error {
		userID = UserIDFromContext(c.Request().Context())
		roles = RolesFromContext(c.Request().Context())
		if c.Get("user_id") != userID {
			t.Errorf("echo context user_id %v differs from request context %q", c.Get("user_id"), userID)
		}
		return nil
	})(c)
	return
}

func expectUnauthorized(t *testing.T, err error) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestJWTMiddleware_RejectsBadHeaders(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runJWT(t, mw, tt.header)
			expectUnauthorized(t, err)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "https://auth.example.org"})

	uid, roles, err := runJWT(t, mw, "Bearer "+signHS256(t, validClaims()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "user-123" {
		t.Errorf("expected user-123, got %q", uid)
	}
	if len(roles) != 1 || roles[0] != "translator" {
		t.Errorf("expected [translator], got %v", roles)
	}
}

func TestJWTMiddleware_RealmAccessRoles(t *testing.T) {
	claims := validClaims()
	claims.Roles = nil
	claims.RealmAccess = &struct {
		Roles []string `json:"roles"`
	}{Roles: []string{"integration"}}

	_, roles, err := runJWT(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+signHS256(t, claims))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles) != 1 || roles[0] != "integration" {
		t.Errorf("expected [integration], got %v", roles)
	}
}

func TestJWTMiddleware_RejectsInvalidClaims(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "https://evil.example.org"

	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "https://auth.example.org"})
	for name, claims := range map[string]Claims{
		"expired":      expired,
		"no expiry":    noExpiry,
		"wrong issuer": wrongIssuer,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := runJWT(t, mw, "Bearer "+signHS256(t, claims))
			expectUnauthorized(t, err)
		})
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("another-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, _, err = runJWT(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token)
	expectUnauthorized(t, err)
}

func TestJWTMiddleware_JWKS(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(priv.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(priv.E)).Bytes()),
			}},
		})
	}))
	defer srv.Close()

	sign := func(kid string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
		tok.Header["kid"] = kid
		s, err := tok.SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	mw := JWTMiddleware(JWTConfig{JWKSURL: srv.URL})

	for i := 0; i < 2; i++ {
		uid, _, err := runJWT(t, mw, "Bearer "+sign("k1"))
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
		if uid != "user-123" {
			t.Errorf("expected user-123, got %q", uid)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected keys to be cached after one fetch, got %d fetches", hits.Load())
	}

	_, _, err = runJWT(t, mw, "Bearer "+sign("unknown"))
	expectUnauthorized(t, err)

	hs := signHS256(t, validClaims())
	_, _, err = runJWT(t, mw, "Bearer "+hs)
	expectUnauthorized(t, err)
}

func TestDevAuthMiddleware(t *testing.T) {
	uid, roles, err := runJWT(t, DevAuthMiddleware(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "dev-user" {
		t.Errorf("expected dev-user, got %q", uid)
	}
	if len(roles) != 1 || roles[0] != RoleAdmin {
		t.Errorf("expected admin role, got %v", roles)
	}
}
