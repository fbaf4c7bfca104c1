package podengine

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokens(t *testing.T, clock *fakeClock) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)
	m.now = clock.Now
	return m
}

func TestTokenRoundTrip(t *testing.T) {
	m := newTestTokens(t, newFakeClock())
	token, err := m.Issue(Identity{SubjectID: 42, Email: "host@example.com", Role: RoleAdmin})
	require.NoError(t, err)

	id, ok := m.Verify(token)
	require.True(t, ok)
	assert.Equal(t, Identity{SubjectID: 42, Email: "host@example.com", Role: RoleAdmin}, id)
}

func TestTokenExpires(t *testing.T) {
	clock := newFakeClock()
	m := newTestTokens(t, clock)
	token, err := m.Issue(Identity{SubjectID: 1, Role: RoleAdmin})
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, ok := m.Verify(token)
	assert.True(t, ok, "token should be valid before ttl")

	clock.Advance(2 * time.Minute)
	_, ok = m.Verify(token)
	assert.False(t, ok, "token should be rejected after ttl")
}

func TestTokenRejectsForeignSignatures(t *testing.T) {
	clock := newFakeClock()
	m := newTestTokens(t, clock)

	other, err := NewTokenManager("a-completely-different-secret-value", time.Hour)
	require.NoError(t, err)
	other.now = clock.Now
	foreign, err := other.Issue(Identity{SubjectID: 1, Role: RoleAdmin})
	require.NoError(t, err)

	claims := tokenClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-a-number",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong secret": foreign,
		"alg none":     unsigned,
		"no expiry":    noExpiry,
		"bad subject":  badSubject,
		"garbage":      "not.a.token",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := m.Verify(token)
			assert.False(t, ok)
		})
	}
}

func TestNewTokenManagerValidates(t *testing.T) {
	_, err := NewTokenManager("", time.Hour)
	assert.Error(t, err)
	_, err = NewTokenManager(testSecret, 0)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"Bearer ", ""},
		{"Basic dXNlcjpwYXNz", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, BearerToken(r), "header %q", tt.header)
	}
}

func TestRequireAdmin(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})

	rec := ta.do(http.MethodGet, "/api/admin/me", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", errorMessage(t, rec))

	rec = ta.do(http.MethodGet, "/api/admin/me", "", "garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	editor, err := ta.Tokens.Issue(Identity{SubjectID: 7, Email: "ed@example.com", Role: "editor"})
	require.NoError(t, err)
	rec = ta.do(http.MethodGet, "/api/admin/me", "", editor)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", errorMessage(t, rec))

	rec = ta.admin(http.MethodGet, "/api/admin/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeBody[Identity](t, rec)
	assert.Equal(t, testAdminEmail, id.Email)
	assert.Equal(t, RoleAdmin, id.Role)

	ta.clock.Advance(8 * 24 * time.Hour)
	rec = ta.admin(http.MethodGet, "/api/admin/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "expired token")
}

func TestLogin(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})

	rec := ta.do(http.MethodPost, "/api/auth/login", `{"email":" HOST@example.com ","password":"correct horse"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[loginResponse](t, rec)
	assert.Equal(t, testAdminEmail, resp.Admin.Email)
	assert.Equal(t, "Host", resp.Admin.Name)
	id, ok := ta.Tokens.Verify(resp.Token)
	require.True(t, ok)
	assert.Equal(t, resp.Admin.ID, id.SubjectID)

	rec = ta.do(http.MethodPost, "/api/auth/login", `{"email":"host@example.com","password":"wrong"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", errorMessage(t, rec))

	rec = ta.do(http.MethodPost, "/api/auth/login", `{"email":"nobody@example.com","password":"x"}`, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", errorMessage(t, rec))

	rec = ta.do(http.MethodPost, "/api/auth/login", `{"email":"","password":""}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email and password are required", errorMessage(t, rec))

	rec = ta.do(http.MethodPost, "/api/auth/login", `{"email":`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON in request body", errorMessage(t, rec))
}

func TestLoginRateLimit(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})
	body := `{"email":"host@example.com","password":"wrong"}`

	for i := 0; i < 10; i++ {
		rec := ta.do(http.MethodPost, "/api/auth/login", body, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
	}
	rec := ta.do(http.MethodPost, "/api/auth/login", body, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many login attempts. Please wait a minute and try again.", errorMessage(t, rec))

	// Another email from the same address has its own budget.
	rec = ta.do(http.MethodPost, "/api/auth/login", `{"email":"other@example.com","password":"x"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ta.clock.Advance(time.Minute + time.Second)
	rec = ta.do(http.MethodPost, "/api/auth/login", `{"email":"host@example.com","password":"correct horse"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code, "login should work once the window has passed")
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "s3cret"))
	assert.False(t, CheckPassword(h, "S3cret"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret"))
	assert.NotContains(t, fmt.Sprint(h), "s3cret")
}
