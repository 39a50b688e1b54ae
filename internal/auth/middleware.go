package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nafis/library-server/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "principal", p), ANY package that knows the string
// can read or shadow your value. Using a package-private type prevents
// collisions: only THIS package can create a key of type contextKey, so only
// this package can read or write principals in the context.
type contextKey string

const principalKey contextKey = "principal"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the JWT from the Authorization header ("Bearer <token>"),
// validates it, and stores the caller's Principal in the request context.
// If the token is missing or invalid, it returns 401 Unauthorized and stops
// the request chain.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler. The new handler "wraps" the original:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... do stuff before the handler ...
//	        next.ServeHTTP(w, r)
//	        // ... do stuff after the handler ...
//	    })
//	}
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
//
// Note that authentication (who are you?) happens here, but authorization
// (are you allowed to do this?) happens in the service layer — each service
// method checks the Principal's role itself, so the rules hold no matter
// which transport invoked the operation.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := extractPrincipal(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			// Store the principal in context so handlers can read it
			ctx := ContextWithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithPrincipal returns a copy of ctx carrying the given caller.
// Useful when exercising handlers without going through RequireAuth.
func ContextWithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the authenticated caller from the request
// context.
//
// Returns (zero, false) if the request never passed RequireAuth.
//
// Usage in handlers:
//
//	p, ok := auth.PrincipalFromContext(r.Context())
//	if !ok {
//	    // not authenticated
//	}
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	return p, ok && p.UserID != ""
}

// extractPrincipal reads the bearer token and validates it.
//
// HEADER FLOW:
// 1. Client logs in, receives {"token": "<jwt>"}
// 2. Client sends Authorization: Bearer <jwt> on subsequent requests
// 3. We strip the "Bearer " prefix and validate what remains
func extractPrincipal(r *http.Request, tokens *TokenService) (model.Principal, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return model.Principal{}, errors.New("auth: missing bearer token")
	}

	return tokens.Validate(raw)
}
