// Package auth resolves the calling user from Cognito ID tokens, API Gateway
// authorizer claims or an explicit development identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrMissingToken     = errors.New("missing authentication token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidToken     = errors.New("invalid token")
)

// Claims are the ID token claims the service reads.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"cognito:username,omitempty"`
	TokenUse string `json:"token_use,omitempty"`
	jwt.RegisteredClaims
}

// CognitoConfig identifies a user pool app client.
type CognitoConfig struct {
	Region     string
	UserPoolID string
	ClientID   string
	CacheTTL   time.Duration
	Logger     *zap.Logger
}

// Issuer is the pool URL tokens must be issued by.
func (c CognitoConfig) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// JWKSURL is where the pool publishes its signing keys.
func (c CognitoConfig) JWKSURL() string {
	return c.Issuer() + "/.well-known/jwks.json"
}

// CognitoVerifier validates RS256 ID tokens against the pool's JWKS.
type CognitoVerifier struct {
	keys     *KeyCache
	issuer   string
	audience string
}

// NewCognitoVerifier creates a verifier that fetches keys from the pool.
func NewCognitoVerifier(cfg CognitoConfig) *CognitoVerifier {
	keys := NewKeyCache(cfg.JWKSURL(), cfg.CacheTTL, nil, WithKeyLogger(cfg.Logger))
	return newVerifier(keys, cfg.Issuer(), cfg.ClientID)
}

func newVerifier(keys *KeyCache, issuer, audience string) *CognitoVerifier {
	return &CognitoVerifier{keys: keys, issuer: issuer, audience: audience}
}

// Verify parses the token and returns its user id (the sub claim).
func (v *CognitoVerifier) Verify(ctx context.Context, tokenString string) (string, *Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", nil, ErrMissingToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("token has no kid")
			}
			return v.keys.Key(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", nil, ErrInvalidSignature
		default:
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	if claims.Subject == "" {
		return "", nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return claims.Subject, claims, nil
}
