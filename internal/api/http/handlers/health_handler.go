package handlers

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-basico/internal/api/dto"
	"github.com/spec-kit/crm-basico/internal/observability"
)

const probeTimeout = 2 * time.Second

// ConnectionChecker reports whether the contact store answers.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) bool
}

// Pinger reports whether the cache answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	environment  string
	store        ConnectionChecker
	cache        Pinger
	cacheEnabled bool
	metrics      *observability.Metrics
	logger       *zap.Logger
	startedAt    time.Time
}

// HealthDependencies bundles what the probes inspect.
type HealthDependencies struct {
	Environment  string
	Store        ConnectionChecker
	Cache        Pinger
	CacheEnabled bool
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		environment:  deps.Environment,
		store:        deps.Store,
		cache:        deps.Cache,
		cacheEnabled: deps.CacheEnabled,
		metrics:      deps.Metrics,
		logger:       logger,
		startedAt:    time.Now(),
	}
}

// Status GET /status. Always answers 200.
func (h *HealthHandler) Status(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
	defer cancel()

	db := "disconnected"
	if h.store != nil && h.store.CheckConnection(ctx) {
		db = "connected"
	}
	return c.JSON(dto.StatusResponse{
		App:       "ok",
		DB:        db,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Health GET /health. 200 when the store answers, 503 when it does not and
// 500 when the probe itself fails.
func (h *HealthHandler) Health(c *fiber.Ctx) (err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("health check failed", zap.Any("panic", r))
			body := h.baseResponse("error", start)
			body.Database = dto.DatabaseHealth{Status: "error", Error: fmt.Sprint(r)}
			err = c.Status(fiber.StatusInternalServerError).JSON(body)
		}
	}()

	ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
	defer cancel()

	connected := h.store.CheckConnection(ctx)
	elapsed := fmt.Sprintf("%dms", time.Since(start).Milliseconds())

	body := h.baseResponse("ok", start)
	body.Cache = dto.CacheHealth{Status: h.cacheStatus(ctx)}
	if connected {
		body.Database = dto.DatabaseHealth{Status: "connected", ResponseTime: elapsed}
		return c.JSON(body)
	}

	body.Status = "degraded"
	body.Database = dto.DatabaseHealth{Status: "disconnected", ResponseTime: "timeout"}
	return c.Status(fiber.StatusServiceUnavailable).JSON(body)
}

func (h *HealthHandler) cacheStatus(ctx context.Context) string {
	if !h.cacheEnabled {
		return "disabled"
	}
	if h.cache == nil || h.cache.Ping(ctx) != nil {
		return "disconnected"
	}
	return "connected"
}

func (h *HealthHandler) baseResponse(status string, start time.Time) dto.HealthResponse {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	snap := h.metrics.Snapshot()

	return dto.HealthResponse{
		Status:       status,
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		Uptime:       time.Since(h.startedAt).Seconds(),
		ResponseTime: fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
		Environment:  h.environment,
		Database:     dto.DatabaseHealth{Status: "unknown"},
		Cache:        dto.CacheHealth{Status: "unknown"},
		Memory: dto.MemoryHealth{
			Used:  mem.HeapAlloc / 1024 / 1024,
			Total: mem.HeapSys / 1024 / 1024,
			Unit:  "MB",
		},
		Requests: dto.RequestsHealth{Total: snap.Requests, Errors: snap.Errors},
	}
}
