package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/straye-as/deal-engine/internal/config"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrMissingCompany = errors.New("token missing company_id claim")
)

// Claims are the token claims the deal engine reads
type Claims struct {
	CompanyID string `json:"company_id"`
	jwt.RegisteredClaims
}

// JWTValidator validates HS256 tokens signed with the shared secret
type JWTValidator struct {
	secret []byte
	issuer string
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(cfg *config.AuthConfig) *JWTValidator {
	return &JWTValidator{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
	}
}

// ValidateToken validates a token and returns the caller it names
func (v *JWTValidator) ValidateToken(tokenString string) (*UserContext, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.CompanyID == "" {
		return nil, ErrMissingCompany
	}
	companyID, err := uuid.Parse(claims.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("%w: company_id is not a uuid", ErrInvalidToken)
	}

	return &UserContext{
		CompanyID: companyID,
		Subject:   claims.Subject,
		Method:    AuthMethodJWT,
	}, nil
}

// IssueToken signs a token for a company. Used by dealctl and tests.
func (v *JWTValidator) IssueToken(companyID uuid.UUID, subject string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("no signing secret configured")
	}
	now := time.Now()
	claims := Claims{
		CompanyID: companyID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
