package handlers

import (
	"context"
	"net/http"
	"strings"

	"gitlab.com/baseline-2025.net/internal/core/ports/primary"
	"gitlab.com/baseline-2025.net/internal/handlers/response"
)

type operatorKey struct{}

// MiddlewareProvider guards operator routes with HMAC bearer tokens
type MiddlewareProvider struct {
	jwt primary.JWTService
}

func New(jwt primary.JWTService) *MiddlewareProvider {
	return &MiddlewareProvider{jwt: jwt}
}

func (m *MiddlewareProvider) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.WriteError(w, response.ErrorMessage{Message: "Authorization header missing", StatusCode: http.StatusUnauthorized})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := m.jwt.DecodeOperator(r.Context(), tokenString)
		if err != nil {
			response.WriteError(w, response.ErrorMessage{Message: "Invalid token", StatusCode: http.StatusUnauthorized})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorKey{}, claims)))
	})
}

// Operator returns the claims set by JWTMiddleware
func Operator(ctx context.Context) (primary.OperatorClaims, bool) {
	claims, ok := ctx.Value(operatorKey{}).(primary.OperatorClaims)
	return claims, ok
}

// Actor names the caller in audit records
func Actor(r *http.Request) string {
	if claims, ok := Operator(r.Context()); ok && claims.Subject != "" {
		return claims.Subject
	}
	return "anonymous"
}

// CanAccessTeam reports whether the caller may act on team. Tokens without
// a team claim are not team-scoped.
func CanAccessTeam(r *http.Request, team string) bool {
	claims, ok := Operator(r.Context())
	if !ok {
		return false
	}
	return claims.Team == "" || claims.Team == team
}
