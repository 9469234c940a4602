package auth

import (
	"log/slog"
	"net/http"
)

// Middleware attaches the verified identity to the request context. Requests
// without a token pass through anonymous; handlers decide what that allows.
// EventSource cannot set headers, so the token is also read from ?token=.
func Middleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := a.Verify(token)
			if err != nil {
				slog.Warn("rejected token", "path", r.URL.Path, "error", err.Error())
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid token"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
