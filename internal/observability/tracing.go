package observability

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-basico/internal/config"
)

const tracerName = "github.com/spec-kit/crm-basico/internal/observability"

// InitTracing installs a global tracer provider when tracing is enabled and
// returns its shutdown function. When disabled the global no-op provider
// stays in place and the returned function does nothing.
func InitTracing(ctx context.Context, app config.AppConfig, cfg config.TracingConfig, logger *zap.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", app.Name),
			attribute.String("service.version", app.Version),
			attribute.String("deployment.environment", app.Env),
		),
	)
	if err != nil {
		logger.Warn("otel resource init failed (continuing)", zap.Error(err))
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
	}

	exporter, err := buildTraceExporter(ctx, cfg, logger)
	if err != nil {
		logger.Warn("otel exporter init failed (continuing)", zap.Error(err))
	} else {
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("otel tracing initialized", zap.String("endpoint", cfg.Endpoint))
	return tp.Shutdown
}

func buildTraceExporter(ctx context.Context, cfg config.TracingConfig, logger *zap.Logger) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	logger.Warn("otel using stdout exporter (no OTLP endpoint configured)")
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

func clampRatio(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// Tracing starts a server span per request, continuing any trace carried in
// the incoming headers, and stores it in the user context so downstream
// gateway spans become its children.
func Tracing() fiber.Handler {
	tracer := otel.Tracer(tracerName)
	return func(c *fiber.Ctx) error {
		parent := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))
		ctx, span := tracer.Start(parent, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("url.path", c.Path()),
			),
		)
		defer span.End()

		c.SetUserContext(ctx)
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusFromError(err)
			span.RecordError(err)
		}
		span.SetAttributes(
			attribute.String("http.route", c.Route().Path),
			attribute.Int("http.response.status_code", status),
		)
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, fiber.ErrInternalServerError.Message)
		}
		return err
	}
}
