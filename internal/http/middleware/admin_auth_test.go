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

func backofficeToken(t *testing.T, secret, role string) string {
	t.Helper()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops-user",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAdminJWTRejections(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		authHeader string
		wantStatus int
	}{
		{
			name:       "no secret configured",
			secret:     "",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			secret:     "secret",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong signing secret",
			secret:     "secret",
			authHeader: "Bearer " + backofficeToken(t, "other-secret", RoleOperator),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unrecognized role",
			secret:     "secret",
			authHeader: "Bearer " + backofficeToken(t, "secret", "customer"),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "role missing entirely",
			secret:     "secret",
			authHeader: "Bearer " + backofficeToken(t, "secret", ""),
			wantStatus: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/conversation/session/x", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			called := false
			AdminJWT(tt.secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, called, "handler must not run on rejection")
		})
	}
}

func TestAdminJWTAcceptsBackofficeRoles(t *testing.T) {
	for _, role := range []string{RoleOperator, RoleAuditor} {
		t.Run(role, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/conversation/session/x", nil)
			req.Header.Set("Authorization", "Bearer "+backofficeToken(t, "secret", role))
			rec := httptest.NewRecorder()

			var got AdminClaims
			var present bool
			AdminJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, present = AdminClaimsFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			require.True(t, present, "claims must reach the handler context")
			assert.Equal(t, role, got.Role)
			assert.Equal(t, "ops-user", got.Subject)
		})
	}
}
