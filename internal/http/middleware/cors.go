package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
	"github.com/straye-as/deal-engine/internal/config"
	"go.uber.org/zap"
)

// Headers every browser client of the deal API needs, whatever the config says.
// Clients send the acting company and read back the request id, the resolved
// company, download file names and rate limit back-off.
var (
	requiredAllowedHeaders = []string{"Authorization", "Content-Type", "X-API-Key", "X-Company-ID", "X-Request-ID"}
	requiredExposedHeaders = []string{"X-Request-ID", "X-Company-ID", "Content-Disposition", "Retry-After"}
)

func isDevelopment(environment string) bool {
	return environment == "" || environment == "development" || environment == "local"
}

func allowAnyOrigin(r *http.Request, origin string) bool { return origin != "" }

func denyAllOrigins(r *http.Request, origin string) bool { return false }

// CORS returns a CORS middleware for the deal API. Without configured origins
// every origin is allowed in development and none elsewhere; a "*" entry
// allows any origin but is reported outside development.
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   mergeHeaders(cfg.AllowedHeaders, requiredAllowedHeaders),
		ExposedHeaders:   mergeHeaders(cfg.ExposedHeaders, requiredExposedHeaders),
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	switch {
	case slices.Contains(cfg.AllowedOrigins, "*"):
		if !isDevelopment(environment) {
			logger.Warn("CORS allows any origin outside development",
				zap.String("environment", environment))
		}
		options.AllowOriginFunc = allowAnyOrigin
	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
		logger.Info("CORS configured with explicit origins",
			zap.Strings("origins", cfg.AllowedOrigins))
	case isDevelopment(environment):
		options.AllowOriginFunc = allowAnyOrigin
		logger.Info("CORS allows all origins in development")
	default:
		// an empty AllowedOrigins list means "*" to go-chi/cors
		options.AllowOriginFunc = denyAllOrigins
		logger.Warn("CORS has no allowed origins, cross-origin requests are denied",
			zap.String("environment", environment))
	}

	return cors.Handler(options)
}

// mergeHeaders appends the required headers missing from configured
func mergeHeaders(configured, required []string) []string {
	out := slices.Clone(configured)
	for _, h := range required {
		canonical := http.CanonicalHeaderKey(h)
		if !slices.ContainsFunc(out, func(c string) bool { return http.CanonicalHeaderKey(c) == canonical }) {
			out = append(out, h)
		}
	}
	return out
}
