package http

import (
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-basico/internal/api/http/handlers"
	"github.com/spec-kit/crm-basico/internal/api/http/security"
	"github.com/spec-kit/crm-basico/internal/events"
	"github.com/spec-kit/crm-basico/internal/observability"
	"github.com/spec-kit/crm-basico/internal/repository/repositorytest"
	"github.com/spec-kit/crm-basico/internal/service"
	"github.com/spec-kit/crm-basico/internal/web"
	"github.com/spec-kit/crm-basico/internal/worker"
)

var csrfField = regexp.MustCompile(`name="_csrf" value="([^"]+)"`)

type client struct {
	t       *testing.T
	app     *fiber.App
	cookies map[string]*nethttp.Cookie
}

func newTestApp(t *testing.T, repo *repositorytest.Memory) *client {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartActivityWorker(service.NewActivityService(dispatcher, logger, metrics))
	contacts := service.NewContactService(repo, dispatcher, logger)

	opts := security.Options{Logger: logger, MaxAge: time.Hour}
	sessions := security.NewSessionStore(opts)

	app := fiber.New(fiber.Config{Views: web.NewViewEngine()})
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	require.NoError(t, RegisterRoutes(app, RouteConfig{
		Contacts:  handlers.NewContactsHandler(contacts),
		Dashboard: handlers.NewDashboardHandler(contacts, nil, sessions),
		API:       handlers.NewAPIHandler(contacts),
		Health: handlers.NewHealthHandler(handlers.HealthDependencies{
			Environment: "test",
			Store:       contacts,
			Metrics:     metrics,
		}),
		Sessions:  sessions,
		Security:  opts,
		CookieKey: "test-secret",
	}))

	return &client{t: t, app: app, cookies: map[string]*nethttp.Cookie{}}
}

func (c *client) do(req *nethttp.Request) *nethttp.Response {
	c.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	resp, err := c.app.Test(req, 5000)
	require.NoError(c.t, err)
	for _, ck := range resp.Cookies() {
		c.cookies[ck.Name] = ck
	}
	return resp
}

func (c *client) get(path string) (*nethttp.Response, string) {
	c.t.Helper()
	resp := c.do(httptest.NewRequest(nethttp.MethodGet, path, nil))
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(body)
}

func (c *client) token() string {
	c.t.Helper()
	_, body := c.get("/")
	m := csrfField.FindStringSubmatch(body)
	require.Len(c.t, m, 2, "no csrf field on dashboard")
	return m[1]
}

func (c *client) post(path string, form url.Values) *nethttp.Response {
	c.t.Helper()
	req := httptest.NewRequest(nethttp.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return c.do(req)
}

func location(t *testing.T, resp *nethttp.Response) *url.URL {
	t.Helper()
	require.Equal(t, nethttp.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	require.NoError(t, err)
	return loc
}

func apiStats(t *testing.T, c *client) map[string]float64 {
	t.Helper()
	resp, body := c.get("/api/stats")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	var env struct {
		Success bool               `json:"success"`
		Data    map[string]float64 `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	require.True(t, env.Success)
	return env.Data
}

func TestCreateContactScenario(t *testing.T) {
	c := newTestApp(t, repositorytest.NewMemory())

	before := apiStats(t, c)
	resp := c.post("/contactos", url.Values{
		"_csrf":   {c.token()},
		"nombre":  {"Ana Ruiz"},
		"correo":  {"ana@x.com"},
		"empresa": {"Acme"},
	})
	loc := location(t, resp)
	assert.Equal(t, "/", loc.Path)
	assert.Equal(t, "Contacto creado exitosamente", loc.Query().Get("message"))

	after := apiStats(t, c)
	assert.Equal(t, before["total"]+1, after["total"])
	assert.Equal(t, before["prospectos"]+1, after["prospectos"])
	assert.Equal(t, after["total"], after["prospectos"]+after["clientes"]+after["inactivos"])

	_, body := c.get("/contactos")
	assert.Contains(t, body, "Ana Ruiz")
	assert.Contains(t, body, "Lista de Contactos")
}

func TestCreateInvalidEmailRedirectsWithError(t *testing.T) {
	c := newTestApp(t, repositorytest.NewMemory())

	resp := c.post("/contactos", url.Values{
		"_csrf":  {c.token()},
		"nombre": {"Ana Ruiz"},
		"correo": {"nope"},
	})
	loc := location(t, resp)
	assert.Equal(t, "/", loc.Path)
	assert.Equal(t, "El correo electrónico no es válido", loc.Query().Get("error"))
	assert.Zero(t, apiStats(t, c)["total"])
}

func TestCreateDuplicateEmail(t *testing.T) {
	c := newTestApp(t, repositorytest.NewMemory())
	form := url.Values{"nombre": {"Ana"}, "correo": {"ana@x.com"}}

	form.Set("_csrf", c.token())
	location(t, c.post("/contactos", form))

	form.Set("_csrf", c.token())
	loc := location(t, c.post("/contactos", form))
	assert.Equal(t, "Ya existe un contacto con ese correo electrónico", loc.Query().Get("error"))
	assert.Equal(t, float64(1), apiStats(t, c)["total"])
}

func TestPostWithoutTokenRedirects(t *testing.T) {
	c := newTestApp(t, repositorytest.NewMemory())

	resp := c.post("/contactos", url.Values{"nombre": {"Ana"}, "correo": {"ana@x.com"}})
	assert.Less(t, resp.StatusCode, 500)
	loc := location(t, resp)
	assert.Equal(t, "/", loc.Path)

	_, body := c.get("/")
	assert.Contains(t, body, security.CSRFFailureMessage)

	_, body = c.get("/")
	assert.NotContains(t, body, security.CSRFFailureMessage)

	resp = c.post("/contactos/3/eliminar", url.Values{"_csrf": {"forged"}})
	assert.Equal(t, "/", location(t, resp).Path)
	assert.Zero(t, apiStats(t, c)["total"])
}

func TestSearchShortcut(t *testing.T) {
	c := newTestApp(t, repositorytest.NewMemory())

	resp, _ := c.get("/buscar?q=%20%20")
	assert.Equal(t, "/contactos", location(t, resp).String())

	resp, _ = c.get("/buscar?q=ana")
	loc := location(t, resp)
	assert.Equal(t, "/contactos", loc.Path)
	assert.Equal(t, "ana", loc.Query().Get("q"))
}

func TestListWithSearchTerm(t *testing.T) {
	c := newTestApp(t, repositorytest.NewMemory())
	for _, f := range []url.Values{
		{"nombre": {"Ana Ruiz"}, "correo": {"ana@acme.com"}, "empresa": {"Acme"}},
		{"nombre": {"Luis"}, "correo": {"luis@globex.com"}},
	} {
		f.Set("_csrf", c.token())
		location(t, c.post("/contactos", f))
	}

	resp, body := c.get("/contactos?q=acme")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Resultados de búsqueda: &#34;acme&#34;")
	assert.Contains(t, body, "Ana Ruiz")
	assert.NotContains(t, body, "luis@globex.com")
}

func TestEditFormMissingContact(t *testing.T) {
	c := newTestApp(t, repositorytest.NewMemory())

	for _, path := range []string{"/contactos/999/editar", "/contactos/abc/editar"} {
		resp, _ := c.get(path)
		loc := location(t, resp)
		assert.Equal(t, "/", loc.Path)
		assert.Equal(t, "Contacto no encontrado", loc.Query().Get("error"))
	}
}

func TestUpdateFlow(t *testing.T) {
	repo := repositorytest.NewMemory()
	c := newTestApp(t, repo)

	location(t, c.post("/contactos", url.Values{"_csrf": {c.token()}, "nombre": {"Ana"}, "correo": {"ana@x.com"}}))

	resp, body := c.get("/contactos/1/editar")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `value="ana@x.com"`)
	token := csrfField.FindStringSubmatch(body)[1]

	loc := location(t, c.post("/contactos/1", url.Values{
		"_csrf":  {token},
		"nombre": {"Ana María"},
		"correo": {"ana@x.com"},
		"estado": {"cliente"},
	}))
	assert.Equal(t, "/contactos", loc.Path)
	assert.Equal(t, "Contacto actualizado exitosamente", loc.Query().Get("message"))
	assert.Equal(t, float64(1), apiStats(t, c)["clientes"])

	loc = location(t, c.post("/contactos/1", url.Values{"_csrf": {c.token()}, "nombre": {"A"}, "correo": {"ana@x.com"}}))
	assert.Equal(t, "/contactos/1/editar", loc.Path)
	assert.Equal(t, "El nombre debe tener entre 2 y 255 caracteres", loc.Query().Get("error"))

	loc = location(t, c.post("/contactos/999", url.Values{"_csrf": {c.token()}, "nombre": {"Ana"}, "correo": {"ana@x.com"}}))
	assert.Equal(t, "/contactos", loc.Path)
	assert.Equal(t, "No se pudo actualizar el contacto", loc.Query().Get("error"))
}

func TestDeleteFlow(t *testing.T) {
	c := newTestApp(t, repositorytest.NewMemory())
	location(t, c.post("/contactos", url.Values{"_csrf": {c.token()}, "nombre": {"Ana"}, "correo": {"ana@x.com"}}))

	loc := location(t, c.post("/contactos/1/eliminar", url.Values{"_csrf": {c.token()}}))
	assert.Equal(t, "Contacto eliminado exitosamente", loc.Query().Get("message"))

	loc = location(t, c.post("/contactos/1/eliminar", url.Values{"_csrf": {c.token()}}))
	assert.Equal(t, "No se pudo eliminar el contacto", loc.Query().Get("error"))
	assert.Zero(t, apiStats(t, c)["total"])
}

func TestStoreFailures(t *testing.T) {
	repo := repositorytest.NewMemory()
	c := newTestApp(t, repo)
	token := c.token()
	repo.Err = errors.New("connection refused")

	resp, body := c.get("/api/contactos")
	assert.Equal(t, nethttp.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"Error interno del servidor"}`, body)

	resp, body = c.get("/")
	assert.Equal(t, nethttp.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "Error del servidor")
	assert.NotContains(t, body, "connection refused")

	resp, _ = c.get("/contactos")
	assert.Equal(t, nethttp.StatusInternalServerError, resp.StatusCode)

	loc := location(t, c.post("/contactos", url.Values{"_csrf": {token}, "nombre": {"Ana"}, "correo": {"ana@x.com"}}))
	assert.Equal(t, "Error al crear el contacto", loc.Query().Get("error"))
}

func TestHealthEndpoints(t *testing.T) {
	repo := repositorytest.NewMemory()
	c := newTestApp(t, repo)

	resp, body := c.get("/health")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "test", health["environment"])
	assert.Equal(t, "disabled", health["cache"].(map[string]interface{})["status"])
	assert.Equal(t, "MB", health["memory"].(map[string]interface{})["unit"])

	repo.Down = true
	resp, body = c.get("/health")
	assert.Equal(t, nethttp.StatusServiceUnavailable, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "degraded", health["status"])
	assert.Equal(t, "disconnected", health["database"].(map[string]interface{})["status"])

	resp, body = c.get("/status")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	var status map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, "ok", status["app"])
	assert.Equal(t, "disconnected", status["db"])
}

func TestNotFoundAndStatic(t *testing.T) {
	c := newTestApp(t, repositorytest.NewMemory())

	resp, body := c.get("/no-such-page")
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Página no encontrada")

	resp, _ = c.get("/css/style.css")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=31536000, immutable", resp.Header.Get(fiber.HeaderCacheControl))

	resp, _ = c.get("/js/main.js")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
}

func TestStoredContactsSurviveLaterRequests(t *testing.T) {
	c := newTestApp(t, repositorytest.NewMemory())
	for _, f := range []url.Values{
		{"nombre": {"Ana Ruiz"}, "correo": {"ana@acme.com"}, "empresa": {"Acme"}},
		{"nombre": {"Luis"}, "correo": {"luis@globex.com"}, "empresa": {"Globex"}},
	} {
		f.Set("_csrf", c.token())
		location(t, c.post("/contactos", f))
	}

	resp, body := c.get("/api/contactos")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	var env struct {
		Data struct {
			Contacts []struct {
				Name    string  `json:"nombre"`
				Email   string  `json:"correo"`
				Company *string `json:"empresa"`
			} `json:"contactos"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	require.Len(t, env.Data.Contacts, 2)

	byEmail := map[string]string{}
	for _, ct := range env.Data.Contacts {
		require.NotNil(t, ct.Company)
		byEmail[ct.Email] = ct.Name + "/" + *ct.Company
	}
	assert.Equal(t, map[string]string{
		"ana@acme.com":    "Ana Ruiz/Acme",
		"luis@globex.com": "Luis/Globex",
	}, byEmail)
}
