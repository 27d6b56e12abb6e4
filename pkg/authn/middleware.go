package authn

import (
	"encoding/json"
	"net/http"
	"strings"
)

// TokenVerifier validates a raw bearer token. Satisfied by *Verifier.
type TokenVerifier interface {
	Verify(tokenString string) (*Identity, error)
}

// Middleware returns an HTTP middleware that requires a valid bearer token
// and stores the caller identity in the request context.
func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	if verifier == nil {
		panic("authn: verifier is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, ErrMissingToken)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
