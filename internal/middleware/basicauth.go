package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"mediashrink/internal/auth"
)

type userKey string

const userNameKey userKey = "user_name"

// BasicAuthConfig holds the single account the service accepts.
type BasicAuthConfig struct {
	Enabled bool
	User    string
	Pass    string
}

// BasicAuth requires an Authorization: Basic header.
func BasicAuth(cfg BasicAuthConfig) func(http.Handler) http.Handler {
	return basicAuth(cfg, false)
}

// BasicAuthOrToken also accepts the credentials as an auth query token, for
// event streams that cannot send headers.
func BasicAuthOrToken(cfg BasicAuthConfig) func(http.Handler) http.Handler {
	return basicAuth(cfg, true)
}

func basicAuth(cfg BasicAuthConfig, allowToken bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			creds, ok := credentialsFrom(r, allowToken)
			if !ok || !cfg.matches(creds) {
				w.Header().Set("WWW-Authenticate", `Basic realm="mediashrink"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userNameKey, creds.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func credentialsFrom(r *http.Request, allowToken bool) (auth.BasicAuth, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		creds, err := auth.ParseHeader(header)
		return creds, err == nil
	}
	if allowToken {
		if token := r.URL.Query().Get("auth"); token != "" {
			creds, err := auth.ParseToken(token)
			return creds, err == nil
		}
	}
	return auth.BasicAuth{}, false
}

func (c BasicAuthConfig) matches(creds auth.BasicAuth) bool {
	userOK := subtle.ConstantTimeCompare([]byte(creds.User), []byte(c.User)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(creds.Pass), []byte(c.Pass)) == 1
	return userOK && passOK
}

// UserFromContext returns the authenticated user name, if any.
func UserFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userNameKey).(string); ok {
		return v
	}
	return ""
}
