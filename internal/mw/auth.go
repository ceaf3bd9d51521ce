package mw

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const staffCtxKey contextKey = "staff"

const tokenCookie = "token"

const (
	RoleWaiter  = "waiter"
	RoleCook    = "cook"
	RoleCashier = "cashier"
	RoleManager = "manager"
)

// Staff is the identity carried by tokens issued by the user service.
type Staff struct {
	ID   string
	Role string
}

func StaffFrom(ctx context.Context) (Staff, bool) {
	s, ok := ctx.Value(staffCtxKey).(Staff)
	return s, ok
}

func WithStaff(ctx context.Context, s Staff) context.Context {
	return context.WithValue(ctx, staffCtxKey, s)
}

// AuthMiddleware accepts the token from the Authorization header or, for
// browsers and WebSocket upgrades, from the token cookie.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractToken(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid claims", http.StatusUnauthorized)
				return
			}

			staffID, ok := claims["staff_id"].(string)
			if !ok || staffID == "" {
				http.Error(w, "staff_id not found in token", http.StatusUnauthorized)
				return
			}
			role, _ := claims["role"].(string)

			ctx := WithStaff(r.Context(), Staff{ID: staffID, Role: strings.ToLower(role)})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets managers through everywhere and otherwise only the listed roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles)+1)
	allowed[RoleManager] = struct{}{}
	for _, r := range roles {
		allowed[strings.ToLower(r)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			staff, ok := StaffFrom(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[staff.Role]; !ok {
				http.Error(w, "role not allowed", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", errors.New("invalid token format")
		}
		return parts[1], nil
	}
	if c, err := r.Cookie(tokenCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", errors.New("unauthorized")
}
