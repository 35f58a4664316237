package middleware

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/httpcontext"
)

const bearerPrefix = "Bearer "

// TokenVerifier is satisfied by token.Manager.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// Middleware decorates a fasthttp handler.
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// JWTAuth admits requests carrying a valid "Bearer <token>" Authorization
// header and records the caller on the request. Everything else gets 401.
func JWTAuth(verifier TokenVerifier, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString, reason := extractToken(ctx)
			if reason != "" {
				reject(ctx, logger, reason, nil)
				return
			}

			userID, err := verifier.Verify(tokenString)
			if err != nil {
				reason = "invalid"
				if errors.Is(err, domain.ErrTokenExpired) {
					reason = "expired"
				}
				reject(ctx, logger, reason, err)
				return
			}

			httpcontext.SetUserID(ctx, userID)
			next(ctx)
		}
	}
}

func extractToken(ctx *fasthttp.RequestCtx) (string, string) {
	header := string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))
	if header == "" {
		return "", "missing"
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", "malformed"
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return "", "malformed"
	}
	return token, ""
}

func reject(ctx *fasthttp.RequestCtx, logger *zap.Logger, reason string, err error) {
	fields := []zap.Field{
		zap.String("request_id", httpcontext.EnsureRequestID(ctx)),
		zap.String("reason", reason),
		zap.String("path", string(ctx.Path())),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.Warn("request not authenticated", fields...)

	body, _ := json.Marshal(transport.NewError(string(domain.ErrCodeUnauthorized), domain.ErrUnauthenticated.Message))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBody(body)
}
