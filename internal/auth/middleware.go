package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/config"
	"github.com/straye-as/deal-engine/internal/domain"
	"go.uber.org/zap"
)

// CompanyHeader names the acting company for API key calls. Authenticated
// responses echo it.
const CompanyHeader = "X-Company-ID"

// Middleware handles authentication for HTTP requests
type Middleware struct {
	jwtValidator *JWTValidator
	apiKey       string
	logger       *zap.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(cfg *config.AuthConfig, logger *zap.Logger) *Middleware {
	return &Middleware{
		jwtValidator: NewJWTValidator(cfg),
		apiKey:       cfg.APIKey,
		logger:       logger,
	}
}

// Authenticate resolves the acting company from an API key plus X-Company-ID,
// or from the company_id claim of a bearer token.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
			if !m.validateAPIKey(apiKey) {
				m.logger.Warn("invalid API key attempt",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				unauthorized(w, "invalid API key")
				return
			}

			companyID, err := uuid.Parse(r.Header.Get(CompanyHeader))
			if err != nil || companyID == uuid.Nil {
				unauthorized(w, "X-Company-ID header must name the acting company")
				return
			}

			userCtx := &UserContext{CompanyID: companyID, Subject: "service", Method: AuthMethodAPIKey}
			m.logger.Debug("request authenticated",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("auth_type", string(AuthMethodAPIKey)),
				zap.String("company_id", companyID.String()),
				zap.Duration("auth_duration", time.Since(start)),
			)
			w.Header().Set(CompanyHeader, companyID.String())
			next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(w, "invalid authorization header format")
			return
		}

		userCtx, err := m.jwtValidator.ValidateToken(parts[1])
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			unauthorized(w, err.Error())
			return
		}

		m.logger.Debug("request authenticated",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("auth_type", string(AuthMethodJWT)),
			zap.String("company_id", userCtx.CompanyID.String()),
			zap.String("subject", userCtx.Subject),
			zap.Duration("auth_duration", time.Since(start)),
		)

		w.Header().Set(CompanyHeader, userCtx.CompanyID.String())
		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
	})
}

func (m *Middleware) validateAPIKey(key string) bool {
	if m.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) == 1
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   "about:blank",
		Title:  "Unauthorized",
		Status: http.StatusUnauthorized,
		Detail: detail,
	})
}
