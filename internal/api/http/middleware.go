package http

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-basico/internal/api/dto"
	"github.com/spec-kit/crm-basico/internal/api/http/handlers"
	"github.com/spec-kit/crm-basico/internal/observability"
	apperrors "github.com/spec-kit/crm-basico/pkg/util/errorutil"
)

const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline'; " +
	"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
	"font-src 'self' https://fonts.gstatic.com data:; " +
	"img-src 'self' data: *; " +
	"frame-ancestors 'self'"

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(observability.Tracing())
	app.Use(errorHandlingMiddleware(logger))
	app.Use(observability.RequestLogger(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(helmet.New(helmet.Config{
		ContentSecurityPolicy: contentSecurityPolicy,
		XSSProtection:         "0",
	}))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorHandlingMiddleware turns returned errors and panics into responses:
// the JSON envelope under /api, the error page elsewhere.
func errorHandlingMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}

			var status int
			var message string
			if fiberErr, ok := err.(*fiber.Error); ok {
				status, message = fiberErr.Code, fiberErr.Message
			} else {
				domainErr := apperrors.ToDomainError(err)
				status, message = domainErr.HTTPStatus, domainErr.Message
			}
			if status >= fiber.StatusInternalServerError {
				logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
			}

			// the error is handled here; the outer middlewares still see the status
			if strings.HasPrefix(c.Path(), "/api/") {
				c.Status(status)
				err = c.JSON(dto.Envelope{Success: false, Error: message})
				return
			}
			if status == fiber.StatusNotFound {
				err = handlers.NotFound(c)
				return
			}
			err = handlers.RenderError(c)
		}()
		return c.Next()
	}
}
