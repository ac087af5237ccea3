package httpapi

import (
	"context"
	"net/http"
	"strings"

	"canopy-backend-go/internal/services"
)

type contextKey string

const ctxClaims contextKey = "claims"

func WithAuth(tokens services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				WriteError(w, http.StatusUnauthorized, "Authentication failed")
				return
			}
			tokenStr := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			claims, err := tokens.Parse(r.Context(), tokenStr, services.TokenAccess)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func CurrentClaims(r *http.Request) *services.Claims {
	if claims, ok := r.Context().Value(ctxClaims).(*services.Claims); ok {
		return claims
	}
	return nil
}

func CurrentActor(r *http.Request) services.Actor {
	if claims := CurrentClaims(r); claims != nil {
		return claims.Actor()
	}
	return services.Actor{}
}

func CurrentUserID(r *http.Request) string {
	return CurrentActor(r).ID
}

// optionalActor parses a bearer token when one is present. Public routes use it
// to show owners their own unpublished events.
func (s *Server) optionalActor(r *http.Request) *services.Actor {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil
	}
	claims, err := s.Tokens.Parse(r.Context(), strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")), services.TokenAccess)
	if err != nil {
		return nil
	}
	actor := claims.Actor()
	return &actor
}

func RequireAnyRole(roles ...services.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !services.AuthorizeRoles(CurrentActor(r).Roles, roles...) {
				WriteError(w, http.StatusForbidden, "Not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
