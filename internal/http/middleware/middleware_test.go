package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/auth"
	"github.com/straye-as/deal-engine/internal/config"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: false, RequestsPerMinute: 1}, zap.NewNop())
	handler := rl.LimitByIP(okHandler())

	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiter_ExceedsLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}, zap.NewNop())
	handler := rl.LimitByIP(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)

		if w.Code == http.StatusTooManyRequests {
			var body domain.APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, http.StatusTooManyRequests, body.Status)
			assert.Equal(t, "60", w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_Whitelists(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 1,
		WhitelistIPs:      []string{"127.0.0.1"},
		WhitelistPaths:    []string{"/health", "/swagger/*"},
	}, zap.NewNop())
	handler := rl.LimitByIP(okHandler())

	tests := []struct {
		name       string
		path       string
		remoteAddr string
	}{
		{"whitelisted ip", "/api/v1/deals", "127.0.0.1:1234"},
		{"whitelisted path", "/health", "10.0.0.2:1234"},
		{"whitelisted prefix", "/swagger/index.html", "10.0.0.3:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				req := httptest.NewRequest(http.MethodGet, tt.path, nil)
				req.RemoteAddr = tt.remoteAddr
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)
				assert.Equal(t, http.StatusOK, w.Code)
			}
		})
	}
}

func TestRateLimiter_KeysByCompany(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerMinuteAuth: 1}, zap.NewNop())
	handler := rl.Limit(okHandler())

	send := func(companyID uuid.UUID) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		req = req.WithContext(auth.WithUserContext(req.Context(), &auth.UserContext{CompanyID: companyID}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	first, second := uuid.New(), uuid.New()
	assert.Equal(t, http.StatusOK, send(first))
	assert.Equal(t, http.StatusTooManyRequests, send(first))
	// same IP, different company, separate budget
	assert.Equal(t, http.StatusOK, send(second))
}

func TestSecurityHeaders(t *testing.T) {
	cfg := &config.SecurityConfig{
		EnableHSTS:            true,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		ContentTypeNosniff:    true,
		FrameOptions:          "DENY",
		ContentSecurityPolicy: "default-src 'none'",
		ReferrerPolicy:        "no-referrer",
		NoStoreAPI:            true,
	}

	w := httptest.NewRecorder()
	middleware.SecurityHeaders(cfg)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, w.Header().Get("Cache-Control"))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'none'", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))

	w = httptest.NewRecorder()
	middleware.SecurityHeaders(cfg)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = httptest.NewRecorder()
	middleware.SecurityHeaders(&config.SecurityConfig{})(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, w.Header().Get("X-Frame-Options"))
}

func TestCORS(t *testing.T) {
	preflight := func(cfg *config.CORSConfig, env, origin string) string {
		handler := middleware.CORS(cfg, env, zap.NewNop())(okHandler())
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/deals", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", "GET")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Header().Get("Access-Control-Allow-Origin")
	}

	open := &config.CORSConfig{AllowedMethods: []string{"GET"}}
	assert.Equal(t, "http://localhost:3000", preflight(open, "development", "http://localhost:3000"))
	assert.Empty(t, preflight(open, "production", "http://localhost:3000"))

	explicit := &config.CORSConfig{AllowedOrigins: []string{"https://buyer.example.com"}, AllowedMethods: []string{"GET"}}
	assert.Equal(t, "https://buyer.example.com", preflight(explicit, "production", "https://buyer.example.com"))
	assert.Empty(t, preflight(explicit, "production", "https://evil.example.com"))
}

func TestCORS_DealHeadersAlwaysAllowed(t *testing.T) {
	cfg := &config.CORSConfig{
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept"},
		ExposedHeaders: []string{"Location"},
	}
	handler := middleware.CORS(cfg, "development", zap.NewNop())(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/deals", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-Company-ID, X-API-Key")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	exposed := w.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{"Location", "X-Request-Id", "X-Company-Id", "Content-Disposition", "Retry-After"} {
		assert.Contains(t, exposed, h)
	}
}

func TestCORS_WildcardOrigin(t *testing.T) {
	cfg := &config.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET"}}
	handler := middleware.CORS(cfg, "production", zap.NewNop())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "https://anywhere.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := middleware.Recovery(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, domain.ErrorTypeInternal, body.Type)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestLogging_RequestIDAndCompany(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	companyID := uuid.New()

	handler := middleware.Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(auth.CompanyHeader, companyID.String())
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/deals", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, companyID.String(), fields["company_id"])
	assert.EqualValues(t, http.StatusCreated, fields["status_code"])

	// a request ID is generated when absent
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestMetrics_PassesThrough(t *testing.T) {
	r := chi.NewRouter()
	r.Use(middleware.Metrics)
	r.Get("/api/v1/deals/{dealId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/deals/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
