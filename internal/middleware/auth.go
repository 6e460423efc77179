package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crexpressinc/formsgate/internal/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// AdminAuth verifies JWT access tokens and admits admins only: role "admin"
// or an email in adminDomain. The token comes from the Authorization header,
// or from the "token" query parameter for websocket upgrades.
func AdminAuth(secret, adminDomain string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(tokenString, secret)
			if err != nil || claims["type"] == "refresh" {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			if !IsAdmin(claims, adminDomain) {
				http.Error(w, "Admin access required", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if t := r.URL.Query().Get("token"); t != "" && strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			return t, true
		}
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// IsAdmin reports whether the claims belong to an administrator
func IsAdmin(claims jwt.MapClaims, adminDomain string) bool {
	if role, _ := claims["role"].(string); role == "admin" {
		return true
	}
	email, _ := claims["email"].(string)
	if adminDomain == "" || email == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(email), "@"+strings.ToLower(adminDomain))
}

// GetClaimsFromContext retrieves the token claims from request context
func GetClaimsFromContext(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(UserContextKey).(jwt.MapClaims)
	return claims, ok
}

// UserID returns the id claim of the authenticated user, or ""
func UserID(ctx context.Context) string {
	claims, ok := GetClaimsFromContext(ctx)
	if !ok {
		return ""
	}
	id, _ := claims["id"].(string)
	return id
}
