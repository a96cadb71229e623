package auth

import (
	"context"

	"github.com/google/uuid"
)

// AuthMethod records how a request was authenticated
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// UserContext holds the authenticated caller. Every deal operation acts on
// behalf of CompanyID.
type UserContext struct {
	CompanyID uuid.UUID
	Subject   string
	Method    AuthMethod
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok && user != nil
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// CompanyIDFromContext returns the acting company, or uuid.Nil when the
// request is unauthenticated
func CompanyIDFromContext(ctx context.Context) uuid.UUID {
	if user, ok := FromContext(ctx); ok {
		return user.CompanyID
	}
	return uuid.Nil
}
