package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const emailKey contextKey = "email"

// Unauthorized writes the 401 body the remote service uses.
func Unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"detail":"Could not validate credentials"}` + "\n"))
}

// RequireBearer rejects requests without a valid "Authorization: Bearer" token and
// stores the token's email in the request context.
func RequireBearer(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				Unauthorized(w)
				return
			}
			email, err := tokens.Validate(token)
			if err != nil {
				Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), emailKey, email)))
		})
	}
}

// EmailFromContext returns the authenticated email set by RequireBearer.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok && email != ""
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
