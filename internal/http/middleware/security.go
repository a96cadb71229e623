package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/straye-as/deal-engine/internal/config"
)

// SecurityHeaders sets the configured security headers on every response.
// Deal data under /api/ is never cached by browsers or proxies.
func SecurityHeaders(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	static := securityHeaderSet(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, value := range static {
				h.Set(name, value)
			}
			if cfg.NoStoreAPI && strings.HasPrefix(r.URL.Path, "/api/") {
				h.Set("Cache-Control", "no-store")
			}
			h.Del("X-Powered-By")
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}

func securityHeaderSet(cfg *config.SecurityConfig) map[string]string {
	headers := make(map[string]string)

	// stored documents are served with their recorded content type
	if cfg.ContentTypeNosniff {
		headers["X-Content-Type-Options"] = "nosniff"
	}
	if cfg.FrameOptions != "" {
		headers["X-Frame-Options"] = cfg.FrameOptions
	}
	if cfg.ContentSecurityPolicy != "" {
		headers["Content-Security-Policy"] = cfg.ContentSecurityPolicy
	}
	if cfg.ReferrerPolicy != "" {
		headers["Referrer-Policy"] = cfg.ReferrerPolicy
	}
	if cfg.EnableHSTS {
		hsts := fmt.Sprintf("max-age=%d", cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
		headers["Strict-Transport-Security"] = hsts
	}
	return headers
}
