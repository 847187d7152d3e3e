package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"mediashrink/internal/auth"
)

func TestBasicAuth(t *testing.T) {
	cfg := BasicAuthConfig{Enabled: true, User: "admin", Pass: "pa:ss"}
	good := auth.BasicAuth{User: "admin", Pass: "pa:ss"}
	goodHeader, _ := auth.HeaderValue(good)
	goodToken, _ := auth.QueryToken(good)
	badHeader, _ := auth.HeaderValue(auth.BasicAuth{User: "admin", Pass: "nope"})

	tests := []struct {
		name       string
		cfg        BasicAuthConfig
		allowToken bool
		header     string
		query      string
		want       int
	}{
		{name: "valid header", cfg: cfg, header: goodHeader, want: http.StatusOK},
		{name: "wrong password", cfg: cfg, header: badHeader, want: http.StatusUnauthorized},
		{name: "garbage header", cfg: cfg, header: "Bearer abc", want: http.StatusUnauthorized},
		{name: "missing", cfg: cfg, want: http.StatusUnauthorized},
		{name: "token not allowed", cfg: cfg, query: goodToken, want: http.StatusUnauthorized},
		{name: "token allowed", cfg: cfg, allowToken: true, query: goodToken, want: http.StatusOK},
		{name: "header wins over token", cfg: cfg, allowToken: true, header: badHeader, query: goodToken, want: http.StatusUnauthorized},
		{name: "disabled", cfg: BasicAuthConfig{}, want: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var user string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				user = UserFromContext(r.Context())
			})
			h := BasicAuth(tc.cfg)(next)
			if tc.allowToken {
				h = BasicAuthOrToken(tc.cfg)(next)
			}
			target := "/api/stream/job"
			if tc.query != "" {
				target += "?auth=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Fatalf("missing WWW-Authenticate header")
			}
			if tc.want == http.StatusOK && tc.cfg.Enabled && user != "admin" {
				t.Fatalf("user = %q, want admin", user)
			}
		})
	}
}

func TestBasicAuthLetsPreflightThrough(t *testing.T) {
	h := BasicAuth(BasicAuthConfig{Enabled: true, User: "u", Pass: "p"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/upload", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}
