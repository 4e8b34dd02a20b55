package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
// Using a package-private type means only this package can read or write
// the subject value; a plain string key could collide with other packages.
type contextKey string

const subjectKey contextKey = "subject"

// Verifier checks the credentials on a request and returns the caller
// identity. Both middlewares below delegate to it.
type Verifier struct {
	tokens  *TokenService // nil disables bearer tokens
	keys    *KeyService
	keyHash string // bcrypt hash of the accepted API key; "" disables keys
}

// NewVerifier builds a Verifier. Either credential type may be disabled
// by passing nil / an empty hash; if both are disabled every request is
// rejected, which callers should treat as a configuration error.
func NewVerifier(tokens *TokenService, keys *KeyService, keyHash string) *Verifier {
	return &Verifier{tokens: tokens, keys: keys, keyHash: keyHash}
}

var errNoCredentials = errors.New("auth: no credentials presented")

// identify extracts and validates credentials from the request. Bearer
// tokens are tried first, then the API key header.
func (v *Verifier) identify(r *http.Request) (string, error) {
	if v.tokens != nil {
		if header := r.Header.Get("Authorization"); header != "" {
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return "", errors.New("auth: malformed Authorization header")
			}
			return v.tokens.Validate(strings.TrimSpace(token))
		}
	}

	if v.keys != nil && v.keyHash != "" {
		if key := r.Header.Get("X-API-Key"); key != "" {
			if err := v.keys.Verify(v.keyHash, key); err != nil {
				return "", err
			}
			// API keys carry no identity of their own.
			return "api-key", nil
		}
	}

	return "", errNoCredentials
}

// RequireAuth enforces authentication on protected routes. It validates
// the request credentials, stores the caller identity in the request
// context, and returns 401 Unauthorized when validation fails.
func RequireAuth(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := v.identify(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth extracts the caller identity when valid credentials are
// present but never blocks the request. Handlers can distinguish
// authenticated callers via SubjectFromContext.
func OptionalAuth(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subject, err := v.identify(r); err == nil && subject != "" {
				ctx := context.WithValue(r.Context(), subjectKey, subject)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SubjectFromContext retrieves the authenticated caller identity.
// Returns ("", false) for anonymous requests.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok && subject != ""
}
