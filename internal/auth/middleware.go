package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"go.uber.org/zap"
)

// DefaultDevUserID is the identity used when the development identity is on
// and the request carries no credentials.
const DefaultDevUserID = "test-user-001"

// TokenVerifier validates a bearer token and returns the user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, *Claims, error)
}

// MiddlewareConfig controls which identity sources are accepted.
type MiddlewareConfig struct {
	// Verifier may be nil when only authorizer claims or the dev identity
	// are in use.
	Verifier   TokenVerifier
	DevEnabled bool
	DevUserID  string
}

// Middleware attaches an Identity to every request or rejects it with 401.
type Middleware struct {
	cfg     MiddlewareConfig
	errors  *appErrors.ErrorHandler
	logger  *zap.Logger
	lambdaC func(ctx context.Context) (string, bool)
}

// NewMiddleware creates the identity middleware.
func NewMiddleware(cfg MiddlewareConfig, errorHandler *appErrors.ErrorHandler, logger *zap.Logger) *Middleware {
	if cfg.DevUserID == "" {
		cfg.DevUserID = DefaultDevUserID
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DevEnabled {
		logger.Warn("Development identity enabled", zap.String("user_id", cfg.DevUserID))
	}
	return &Middleware{cfg: cfg, errors: errorHandler, logger: logger, lambdaC: authorizerSubject}
}

// Handler resolves the caller in order: bearer token, API Gateway authorizer
// claim, development identity. A bearer token that fails verification is
// rejected even when the development identity is enabled.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if token := bearerToken(r); token != "" && m.cfg.Verifier != nil {
			userID, claims, err := m.cfg.Verifier.Verify(ctx, token)
			if err != nil {
				m.logger.Warn("Token rejected",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				m.errors.Handle(w, r, appErrors.NewUnauthorized(unauthorizedMessage(err)))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, Identity{
				UserID: userID,
				Email:  claims.Email,
				Source: "cognito",
			})))
			return
		}

		if sub, ok := m.lambdaC(ctx); ok {
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, Identity{UserID: sub, Source: "authorizer"})))
			return
		}

		if m.cfg.DevEnabled {
			m.logger.Debug("Using development identity", zap.String("path", r.URL.Path))
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, Identity{UserID: m.cfg.DevUserID, Source: "dev"})))
			return
		}

		m.errors.Handle(w, r, appErrors.NewUnauthorized("authentication required"))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, ErrExpiredToken):
		return "token has expired"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid token signature"
	default:
		return "invalid token"
	}
}

// authorizerSubject reads the sub claim set by an API Gateway JWT authorizer
// when running behind the Lambda proxy.
func authorizerSubject(ctx context.Context) (string, bool) {
	reqCtx, ok := core.GetAPIGatewayV2ContextFromContext(ctx)
	if !ok || reqCtx.Authorizer == nil {
		return "", false
	}
	if reqCtx.Authorizer.JWT != nil {
		if sub := reqCtx.Authorizer.JWT.Claims["sub"]; sub != "" {
			return sub, true
		}
	}
	if sub, ok := reqCtx.Authorizer.Lambda["sub"].(string); ok && sub != "" {
		return sub, true
	}
	return "", false
}
