package router

import (
	"encoding/json"
	"fmt"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskboard/api/handler"
	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/pkg/httpcontext"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Profile *apiHandler.ProfileHandler
	Task    *apiHandler.TaskHandler
	Health  *apiHandler.HealthHandler
}

// New registers every route. authMiddleware guards everything except health
// and the two auth endpoints.
func New(handlers Handlers, authMiddleware middleware.Middleware, logger *zap.Logger) *router.Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := router.New()
	r.HandleOPTIONS = false
	r.PanicHandler = panicHandler(logger)
	r.NotFound = errorHandler(fasthttp.StatusNotFound, domain.ErrCodeNotFound, "route not found")
	r.MethodNotAllowed = errorHandler(fasthttp.StatusMethodNotAllowed, domain.ErrCodeInvalid, "method not allowed")

	r.GET("/health", handlers.Health.Check)

	api := r.Group("/api")

	api.POST("/auth/register", handlers.Auth.Register)
	api.POST("/auth/login", handlers.Auth.Login)

	api.GET("/profile", authMiddleware(handlers.Profile.GetProfile))

	api.GET("/tasks", authMiddleware(handlers.Task.GetTasks))
	api.POST("/tasks", authMiddleware(handlers.Task.CreateTask))
	api.GET("/tasks/{id}", authMiddleware(handlers.Task.GetTask))
	api.PATCH("/tasks/{id}", authMiddleware(handlers.Task.UpdateTask))
	api.DELETE("/tasks/{id}", authMiddleware(handlers.Task.DeleteTask))

	return r
}

func panicHandler(logger *zap.Logger) func(*fasthttp.RequestCtx, interface{}) {
	return func(ctx *fasthttp.RequestCtx, recovered interface{}) {
		logger.Error("panic recovered",
			zap.String("request_id", httpcontext.EnsureRequestID(ctx)),
			zap.String("path", string(ctx.Path())),
			zap.String("panic", fmt.Sprint(recovered)),
			zap.Stack("stack"))
		writeError(ctx, fasthttp.StatusInternalServerError, domain.ErrCodeInternal, "internal server error")
	}
}

func errorHandler(status int, code domain.ErrorCode, message string) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		writeError(ctx, status, code, message)
	}
}

func writeError(ctx *fasthttp.RequestCtx, status int, code domain.ErrorCode, message string) {
	body, _ := json.Marshal(transport.NewError(string(code), message))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}
