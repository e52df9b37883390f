package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/crm-basico/pkg/util/errorutil"
)

// SessionIDKey is the fiber.Ctx local under which handlers expose the
// current session id to the request logger.
const SessionIDKey = "session_id"

// RequestLogger logs one entry per request and feeds the counters.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			status = statusFromError(err)
		}

		// route pattern keeps counter keys bounded
		route := c.Route().Path

		metrics.RecordRequest(route, c.Method(), status, latency)
		if status >= http.StatusInternalServerError {
			metrics.RecordError(route, c.Method(), strconv.Itoa(status))
		}

		fields := []zap.Field{
			zap.String("type", "request"),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.IP()),
		}
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if sid, ok := c.Locals(SessionIDKey).(string); ok && sid != "" {
			fields = append(fields, zap.String("session_id", sid))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
		return err
	}
}

func statusFromError(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return apperrors.ToDomainError(err).HTTPStatus
}
