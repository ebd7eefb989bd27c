package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/foodbridge/api/transport"
	"github.com/fastygo/foodbridge/domain"
	"github.com/fastygo/foodbridge/pkg/httpcontext"
)

const authTimeout = 3 * time.Second

// Authenticator resolves a bearer token into the calling actor.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Actor, error)
}

// JWTAuth rejects requests without a valid token and session, and stores the
// resolved actor on the request for handlers.
func JWTAuth(auth Authenticator, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx, domain.ErrUnauthenticated.Message)
				return
			}

			authCtx, cancel := context.WithTimeout(context.Background(), authTimeout)
			actor, err := auth.Authenticate(authCtx, tokenString)
			cancel()
			if err != nil {
				if !domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
					logger.Error("token check failed", zap.Error(err))
				} else {
					logger.Debug("invalid jwt token", zap.Error(err))
				}
				unauthorized(ctx, "invalid or expired token")
				return
			}

			httpcontext.SetActor(ctx, actor)
			next(ctx)
		}
	}
}

func unauthorized(ctx *fasthttp.RequestCtx, message string) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	body, _ := json.Marshal(transport.NewError(string(domain.ErrCodeUnauthorized), message, nil))
	ctx.SetBody(body)
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
