package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-basico/internal/api/dto"
	"github.com/spec-kit/crm-basico/internal/observability"
)

type stubStore struct {
	up    bool
	panic bool
}

func (s stubStore) CheckConnection(context.Context) bool {
	if s.panic {
		panic("probe exploded")
	}
	return s.up
}

type stubCache struct{ err error }

func (s stubCache) Ping(context.Context) error { return s.err }

func healthApp(deps HealthDependencies) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := NewHealthHandler(deps)
	app := fiber.New()
	app.Get("/status", h.Status)
	app.Get("/health", h.Health)
	return app
}

func getHealth(t *testing.T, app *fiber.App) (int, dto.HealthResponse) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out dto.HealthResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return resp.StatusCode, out
}

func TestHealthConnected(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.RecordRequest("/", http.MethodGet, 200, 0)
	app := healthApp(HealthDependencies{
		Environment:  "production",
		Store:        stubStore{up: true},
		Cache:        stubCache{},
		CacheEnabled: true,
		Metrics:      metrics,
	})

	status, body := getHealth(t, app)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "production", body.Environment)
	assert.Equal(t, "connected", body.Database.Status)
	assert.Regexp(t, `^\d+ms$`, body.Database.ResponseTime)
	assert.Regexp(t, `^\d+ms$`, body.ResponseTime)
	assert.Equal(t, "connected", body.Cache.Status)
	assert.Equal(t, "MB", body.Memory.Unit)
	assert.Equal(t, int64(1), body.Requests.Total)
}

func TestHealthDegraded(t *testing.T) {
	app := healthApp(HealthDependencies{
		Store:        stubStore{up: false},
		Cache:        stubCache{err: errors.New("dial tcp: refused")},
		CacheEnabled: true,
	})

	status, body := getHealth(t, app)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "disconnected", body.Database.Status)
	assert.Equal(t, "timeout", body.Database.ResponseTime)
	assert.Equal(t, "disconnected", body.Cache.Status)
}

func TestHealthProbePanicAnswers500(t *testing.T) {
	app := healthApp(HealthDependencies{Store: stubStore{panic: true}})

	status, body := getHealth(t, app)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "error", body.Database.Status)
	assert.Equal(t, "probe exploded", body.Database.Error)
}

func TestStatusAlwaysOK(t *testing.T) {
	for _, up := range []bool{true, false} {
		app := healthApp(HealthDependencies{Store: stubStore{up: up}})
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/status", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body dto.StatusResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body.App)
		if up {
			assert.Equal(t, "connected", body.DB)
		} else {
			assert.Equal(t, "disconnected", body.DB)
		}
		assert.NotEmpty(t, body.Timestamp)
	}
}

func TestParseID(t *testing.T) {
	valid := []string{"1", "42"}
	invalid := []string{"0", "-3", "abc", "1.5", "", "99999999999999999999"}
	for _, raw := range valid {
		_, ok := parseID(raw)
		assert.True(t, ok, raw)
	}
	for _, raw := range invalid {
		_, ok := parseID(raw)
		assert.False(t, ok, raw)
	}
}
