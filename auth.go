package podengine

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the only role allowed to use the admin API.
const RoleAdmin = "admin"

const identityKey = "podengine.identity"

// Identity is the verified subject of an admin token.
type Identity struct {
	SubjectID int64  `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 admin tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager returns a TokenManager signing with secret. Tokens expire
// after ttl.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for id.
func (m *TokenManager) Issue(id Identity) (string, error) {
	now := m.now()
	claims := tokenClaims{
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.SubjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify decodes token. Any failure (malformed, bad signature, wrong
// algorithm, expired, missing subject) yields ok == false; the cause is
// never reported to the caller.
func (m *TokenManager) Verify(token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, false
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, false
	}
	return Identity{SubjectID: id, Email: claims.Email, Role: claims.Role}, true
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header, or returns "".
func BearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// requireAdmin rejects requests without a valid admin token. A wrong role
// gets the same 401 as a missing token.
func (a *App) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := a.Tokens.Verify(BearerToken(c.Request()))
		if !ok || id.Role != RoleAdmin {
			return apiError(c, http.StatusUnauthorized, "Unauthorized")
		}
		c.Set(identityKey, id)
		return next(c)
	}
}

// CurrentIdentity returns the identity verified by the admin guard.
func CurrentIdentity(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyHash keeps unknown-email logins as slow as wrong-password ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("podengine-dummy-password"), bcrypt.DefaultCost)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	Admin adminSummary `json:"admin"`
}

type adminSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *App) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid JSON in request body")
	}

	if err := a.loginLimiter.Check(LoginKey(c.RealIP(), req.Email), a.Config.LoginRateLimit); err != nil {
		a.metrics.rateLimited.WithLabelValues("login").Inc()
		return apiError(c, http.StatusTooManyRequests, "Too many login attempts. Please wait a minute and try again.")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return apiError(c, http.StatusBadRequest, "Email and password are required")
	}

	admin, err := a.Store.GetAdminByEmail(c.Request().Context(), email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		a.metrics.logins.WithLabelValues("invalid").Inc()
		return apiError(c, http.StatusUnauthorized, "Invalid credentials")
	}
	if !CheckPassword(admin.PasswordHash, req.Password) {
		a.metrics.logins.WithLabelValues("invalid").Inc()
		a.Logger.Warn().Str("email", email).Str("ip", c.RealIP()).Msg("failed admin login")
		return apiError(c, http.StatusUnauthorized, "Invalid credentials")
	}

	token, err := a.Tokens.Issue(Identity{SubjectID: admin.ID, Email: admin.Email, Role: admin.Role})
	if err != nil {
		return err
	}
	a.metrics.logins.WithLabelValues("success").Inc()
	a.Logger.Info().Int64("admin_id", admin.ID).Str("ip", c.RealIP()).Msg("admin logged in")

	return c.JSON(http.StatusOK, loginResponse{
		Token: token,
		Admin: adminSummary{ID: admin.ID, Name: admin.Name, Email: admin.Email, Role: admin.Role},
	})
}

func (a *App) handleMe(c echo.Context) error {
	id, _ := CurrentIdentity(c)
	return c.JSON(http.StatusOK, id)
}
