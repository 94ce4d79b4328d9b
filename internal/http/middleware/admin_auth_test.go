package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveAdmin(t *testing.T, secret, authHeader string) (*httptest.ResponseRecorder, *AdminClaims) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/orders/abc", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()

	var seen *AdminClaims
	AdminJWT(secret, AdminScope)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := AdminClaimsFromContext(r.Context())
		require.True(t, ok, "expected admin claims in context")
		seen = &claims
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, seen
}

func TestAdminJWTMissingSecret(t *testing.T) {
	rec, _ := serveAdmin(t, "", "Bearer "+signedAdminToken(t, "secret", AdminScope, time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTMissingHeader(t *testing.T) {
	rec, _ := serveAdmin(t, "secret", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serveAdmin(t, "secret", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTInvalidToken(t *testing.T) {
	rec, _ := serveAdmin(t, "secret", "Bearer "+signedAdminToken(t, "wrong", AdminScope, time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTExpiredToken(t *testing.T) {
	rec, _ := serveAdmin(t, "secret", "Bearer "+signedAdminToken(t, "secret", AdminScope, -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTRequiresExpiry(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{Scope: AdminScope})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	rec, _ := serveAdmin(t, "secret", "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTRejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, AdminClaims{
		Scope:            AdminScope,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	rec, _ := serveAdmin(t, "secret", "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminJWTMissingScope(t *testing.T) {
	rec, _ := serveAdmin(t, "secret", "Bearer "+signedAdminToken(t, "secret", "orders:write", time.Minute))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminJWTValidToken(t *testing.T) {
	rec, claims := serveAdmin(t, "secret", "Bearer "+signedAdminToken(t, "secret", "profile "+AdminScope, time.Minute))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "ops-user", claims.Subject)
	assert.True(t, claims.HasScope(AdminScope))
}

func signedAdminToken(t *testing.T, secret, scope string, ttl time.Duration) string {
	t.Helper()
	claims := AdminClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops-user",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
