package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-bff/internal/models"
)

func okHandler(t *testing.T, wantUser, wantRole string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantUser, UserIDFrom(r.Context()))
		assert.Equal(t, wantRole, RoleFrom(r.Context()))
		assert.NotEmpty(t, TokenFrom(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestValidateToken(t *testing.T) {
	m := NewMiddleware("secret")
	good, err := Issue("secret", "u1", models.RoleSeller, time.Minute)
	require.NoError(t, err)
	expired, err := Issue("secret", "u1", models.RoleSeller, -time.Minute)
	require.NoError(t, err)
	forged, err := Issue("other", "u1", models.RoleAdmin, time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"bad format", "Token " + good, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized},
		{"valid", "Bearer " + good, http.StatusOK},
	}

	h := m.ValidateToken(okHandler(t, "u1", models.RoleSeller))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestValidateToken_RejectsNoneAlg(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewMiddleware("secret").Verify(s)
	assert.Error(t, err)
}

func TestRequireRole(t *testing.T) {
	m := NewMiddleware("secret")
	h := m.ValidateToken(RequireRole(models.RoleAdmin, models.RoleManager)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	for role, want := range map[string]int{
		models.RoleAdmin:    http.StatusNoContent,
		models.RoleManager:  http.StatusNoContent,
		models.RoleSeller:   http.StatusForbidden,
		models.RoleCustomer: http.StatusForbidden,
	} {
		tok, err := Issue("secret", "u", role, time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}

func TestParseClaims(t *testing.T) {
	tok, err := Issue("whatever", "u9", models.RoleManager, time.Hour)
	require.NoError(t, err)

	c, err := ParseClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "u9", c.Subject)
	assert.Equal(t, models.RoleManager, c.Role)
	assert.False(t, c.Expired(time.Now()))
	assert.True(t, c.Expired(time.Now().Add(2*time.Hour)))

	_, err = ParseClaims("not-a-jwt")
	assert.Error(t, err)
}

func TestParseClaims_DefaultRole(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte("k"))
	require.NoError(t, err)
	c, err := ParseClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, c.Role)
	assert.False(t, c.Expired(time.Now()))
}
