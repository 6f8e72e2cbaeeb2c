package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	roleKey
	tokenKey
)

type Middleware struct {
	secretKey []byte
}

func NewMiddleware(secret string) *Middleware {
	return &Middleware{
		secretKey: []byte(secret),
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (m *Middleware) ValidateToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		tokenString, ok := BearerToken(r)
		if !ok {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := m.Verify(tokenString)
		if err != nil {
			slog.Warn("Invalid token attempt", "error", err)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims, tokenString)))
	})
}

// Verify checks the signature and expiry of an HS256 token.
func (m *Middleware) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}

// RequireRole rejects requests whose token role is not one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFrom(r.Context())
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}

// WithIdentity stores the verified caller in ctx.
func WithIdentity(ctx context.Context, claims *Claims, token string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, claims.Subject)
	ctx = context.WithValue(ctx, roleKey, claims.Role)
	return context.WithValue(ctx, tokenKey, token)
}

func UserIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(userIDKey).(string)
	return s
}

func RoleFrom(ctx context.Context) string {
	s, _ := ctx.Value(roleKey).(string)
	return s
}

// TokenFrom returns the raw bearer token validated for this request, for
// forwarding to the backend.
func TokenFrom(ctx context.Context) string {
	s, _ := ctx.Value(tokenKey).(string)
	return s
}
