package server

import (
	"context"
	"net/http"

	"github.com/tjfontaine/genai-gateway/internal/auth"
	"github.com/tjfontaine/genai-gateway/internal/domain"
)

// IdentityContextKey is the context key for the caller identity.
const IdentityContextKey contextKey = "identity"

// IdentityResolver turns a bearer token into a caller identity.
type IdentityResolver interface {
	Identify(token string) (domain.Identity, error)
}

// AuthMiddleware resolves the bearer token to an identity and stores it in
// the request context. Requests without a valid token get 401.
func AuthMiddleware(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractBearer(r)
			if err != nil {
				WriteError(w, r, domain.ErrUnauthenticated("%v", err))
				return
			}

			identity, err := resolver.Identify(token)
			if err != nil {
				WriteError(w, r, err)
				return
			}

			AddLogField(r.Context(), "owner", string(identity))
			ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the caller identity from context.
// Returns an empty identity if none is set.
func GetIdentity(ctx context.Context) domain.Identity {
	if id, ok := ctx.Value(IdentityContextKey).(domain.Identity); ok {
		return id
	}
	return ""
}
