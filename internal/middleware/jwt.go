package myMiddleware

import (
	"context"
	"net/http"
	"strings"

	"flchat/internal/apperr"
	"flchat/internal/auth"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	tokenErrKey contextKey = "token_error"
)

var ErrMissingToken = apperr.Authentication("missing authentication token")

// TokenValidator is what we need from the token service.
type TokenValidator interface {
	ValidateToken(tokenString string) (auth.Identity, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

// Handle attaches the caller's identity to the request context. Requests
// without a token, or with a bad one, still pass through: public
// operations share the endpoint, and guards report the failure.
func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenString = strings.TrimSpace(parts[1])
			}
		}
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		if id, err := am.validator.ValidateToken(tokenString); err != nil {
			ctx = context.WithValue(ctx, tokenErrKey, err)
		} else {
			ctx = context.WithValue(ctx, identityKey, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom returns the identity Handle attached, or why there is none.
func IdentityFrom(ctx context.Context) (auth.Identity, error) {
	if id, ok := ctx.Value(identityKey).(auth.Identity); ok {
		return id, nil
	}
	if err, ok := ctx.Value(tokenErrKey).(error); ok {
		return auth.Identity{}, err
	}
	return auth.Identity{}, ErrMissingToken
}

// WithIdentity is used by tests and internal callers that already
// authenticated the caller.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}
