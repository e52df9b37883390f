package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/spec-kit/crm-basico/internal/api/http/handlers"
	"github.com/spec-kit/crm-basico/internal/api/http/security"
	"github.com/spec-kit/crm-basico/internal/web"
)

const staticMaxAge = 365 * 24 * time.Hour

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Contacts  *handlers.ContactsHandler
	Dashboard *handlers.DashboardHandler
	API       *handlers.APIHandler
	Health    *handlers.HealthHandler
	Sessions  *session.Store
	Security  security.Options
	CookieKey string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) error {
	app.Get("/status", cfg.Health.Status)
	app.Get("/health", cfg.Health.Health)

	api := app.Group("/api")
	api.Get("/contactos", cfg.API.Contacts)
	api.Get("/stats", cfg.API.Stats)

	for _, dir := range []string{"css", "js"} {
		app.Use("/"+dir, immutable, filesystem.New(filesystem.Config{
			Root:       web.Static(),
			PathPrefix: dir,
			MaxAge:     int(staticMaxAge.Seconds()),
		}))
	}

	encrypt, err := security.EncryptCookies(cfg.CookieKey)
	if err != nil {
		return err
	}
	app.Use(encrypt)
	app.Use(security.CSRF(cfg.Sessions, cfg.Security))
	app.Use(security.RateLimit(cfg.Security))

	app.Get("/", cfg.Dashboard.Dashboard)
	app.Get("/buscar", cfg.Contacts.Search)

	contacts := app.Group("/contactos")
	contacts.Get("/", cfg.Contacts.List)
	contacts.Post("/", cfg.Contacts.Create)
	contacts.Get("/:id/editar", cfg.Contacts.EditForm)
	contacts.Post("/:id/eliminar", cfg.Contacts.Delete)
	contacts.Post("/:id", cfg.Contacts.Update)

	app.Use(handlers.NotFound)
	return nil
}

// immutable marks fingerprint-free assets as cacheable for a year.
func immutable(c *fiber.Ctx) error {
	err := c.Next()
	if c.Response().StatusCode() == fiber.StatusOK {
		c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	}
	return err
}
