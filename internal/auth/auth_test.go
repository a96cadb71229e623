package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/auth"
	"github.com/straye-as/deal-engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret = "test-signing-secret"
	testAPIKey = "test-api-key-12345"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{JWTSecret: testSecret, JWTIssuer: "deal-engine-test", APIKey: testAPIKey}
}

// serve runs the middleware and returns the status and captured caller
func serve(t *testing.T, req *http.Request) (int, *auth.UserContext) {
	t.Helper()
	var captured *auth.UserContext
	handler := auth.NewMiddleware(testAuthConfig(), zap.NewNop()).Authenticate(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured, _ = auth.FromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Code, captured
}

func TestMiddleware_Authenticate_WithToken(t *testing.T) {
	company := uuid.New()
	token, err := auth.NewJWTValidator(testAuthConfig()).IssueToken(company, "buyer-app", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	code, user := serve(t, req)
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, user)
	assert.Equal(t, company, user.CompanyID)
	assert.Equal(t, "buyer-app", user.Subject)
	assert.Equal(t, auth.AuthMethodJWT, user.Method)
}

func TestMiddleware_Authenticate_WithAPIKey(t *testing.T) {
	company := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("X-Company-ID", company.String())

	code, user := serve(t, req)
	assert.Equal(t, http.StatusOK, code)
	require.NotNil(t, user)
	assert.Equal(t, company, user.CompanyID)
	assert.Equal(t, auth.AuthMethodAPIKey, user.Method)
}

func TestMiddleware_Authenticate_Rejects(t *testing.T) {
	signed := func(method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{Issuer: "deal-engine-test", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"no credentials", nil},
		{"wrong scheme", map[string]string{"Authorization": "Basic abc"}},
		{"garbage token", map[string]string{"Authorization": "Bearer not.a.jwt"}},
		{"wrong API key", map[string]string{"X-API-Key": "nope", "X-Company-ID": uuid.NewString()}},
		{"API key without company", map[string]string{"X-API-Key": testAPIKey}},
		{"API key with bad company", map[string]string{"X-API-Key": testAPIKey, "X-Company-ID": "acme"}},
		{"wrong secret", map[string]string{"Authorization": "Bearer " + signed(jwt.SigningMethodHS256, []byte("other"),
			auth.Claims{CompanyID: uuid.NewString(), RegisteredClaims: valid})}},
		{"missing company claim", map[string]string{"Authorization": "Bearer " + signed(jwt.SigningMethodHS256, []byte(testSecret),
			auth.Claims{RegisteredClaims: valid})}},
		{"wrong issuer", map[string]string{"Authorization": "Bearer " + signed(jwt.SigningMethodHS256, []byte(testSecret),
			auth.Claims{CompanyID: uuid.NewString(), RegisteredClaims: jwt.RegisteredClaims{
				Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}})}},
		{"expired", map[string]string{"Authorization": "Bearer " + signed(jwt.SigningMethodHS256, []byte(testSecret),
			auth.Claims{CompanyID: uuid.NewString(), RegisteredClaims: jwt.RegisteredClaims{
				Issuer: "deal-engine-test", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}})}},
		{"no expiry", map[string]string{"Authorization": "Bearer " + signed(jwt.SigningMethodHS256, []byte(testSecret),
			auth.Claims{CompanyID: uuid.NewString(), RegisteredClaims: jwt.RegisteredClaims{Issuer: "deal-engine-test"}})}},
		{"wrong algorithm", map[string]string{"Authorization": "Bearer " + signed(jwt.SigningMethodHS512, []byte(testSecret),
			auth.Claims{CompanyID: uuid.NewString(), RegisteredClaims: valid})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			code, user := serve(t, req)
			assert.Equal(t, http.StatusUnauthorized, code)
			assert.Nil(t, user)
		})
	}
}

func TestJWTValidator_ExpiredError(t *testing.T) {
	v := auth.NewJWTValidator(testAuthConfig())
	token, err := v.IssueToken(uuid.New(), "x", -time.Minute)
	require.NoError(t, err)

	_, err = v.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestJWTValidator_NoSecret(t *testing.T) {
	v := auth.NewJWTValidator(&config.AuthConfig{})
	_, err := v.IssueToken(uuid.New(), "x", time.Hour)
	assert.Error(t, err)
	_, err = v.ValidateToken("a.b.c")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	_, ok := auth.FromContext(ctx)
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, auth.CompanyIDFromContext(ctx))
	assert.Panics(t, func() { auth.MustFromContext(ctx) })

	company := uuid.New()
	ctx = auth.WithUserContext(ctx, &auth.UserContext{CompanyID: company})
	assert.Equal(t, company, auth.CompanyIDFromContext(ctx))
	assert.Equal(t, company, auth.MustFromContext(ctx).CompanyID)
}
