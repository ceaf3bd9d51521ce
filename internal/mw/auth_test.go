package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func validClaims(role string) jwt.MapClaims {
	return jwt.MapClaims{
		"staff_id": "staff-42",
		"role":     role,
		"exp":      jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func echoStaff() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		staff, _ := StaffFrom(r.Context())
		_, _ = w.Write([]byte(staff.ID + "/" + staff.Role))
	})
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware(secret)(echoStaff())

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		body   string
	}{
		{
			name:   "bearer header",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+sign(t, validClaims("Cashier"), secret)) },
			status: http.StatusOK,
			body:   "staff-42/cashier",
		},
		{
			name: "cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "token", Value: sign(t, validClaims("cook"), secret)})
			},
			status: http.StatusOK,
			body:   "staff-42/cook",
		},
		{
			name:   "missing token",
			setup:  func(*http.Request) {},
			status: http.StatusUnauthorized,
		},
		{
			name:   "malformed header",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Token abc") },
			status: http.StatusUnauthorized,
		},
		{
			name:   "wrong key",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+sign(t, validClaims("cook"), "other")) },
			status: http.StatusUnauthorized,
		},
		{
			name: "expired",
			setup: func(r *http.Request) {
				claims := validClaims("cook")
				claims["exp"] = jwt.NewNumericDate(time.Now().Add(-time.Minute))
				r.Header.Set("Authorization", "Bearer "+sign(t, claims, secret))
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "no staff id",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+sign(t, jwt.MapClaims{"role": "cook"}, secret))
			},
			status: http.StatusUnauthorized,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(RoleCashier)(echoStaff())

	for role, status := range map[string]int{
		RoleCashier: http.StatusOK,
		RoleManager: http.StatusOK,
		RoleWaiter:  http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/totals", nil)
		req = req.WithContext(WithStaff(req.Context(), Staff{ID: "s", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code, role)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/totals", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
