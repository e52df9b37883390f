package handlers

import (
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-basico/internal/api/http/security"
	"github.com/spec-kit/crm-basico/internal/domain"
	"github.com/spec-kit/crm-basico/internal/web"
)

// page returns the model shared by every rendered view.
func page(c *fiber.Ctx, title string) fiber.Map {
	return fiber.Map{
		"Title":     title,
		"CSRFToken": security.Token(c),
		"Query":     "",
		"Message":   c.Query("message"),
		"Error":     c.Query("error"),
		"Statuses":  domain.ContactStatuses,
	}
}

func render(c *fiber.Ctx, status int, view string, model fiber.Map) error {
	return c.Status(status).Render(view, model, web.Layout)
}

// RenderError renders the generic server error page.
func RenderError(c *fiber.Ctx) error {
	model := page(c, "Error del servidor")
	model["Message"] = ""
	model["Error"] = ""
	return render(c, fiber.StatusInternalServerError, "error", model)
}

// NotFound renders the 404 page for unmatched routes.
func NotFound(c *fiber.Ctx) error {
	model := page(c, "Página no encontrada")
	model["Message"] = ""
	model["Error"] = ""
	return render(c, fiber.StatusNotFound, "404", model)
}

func redirectWith(c *fiber.Ctx, path, key, message string) error {
	return c.Redirect(path + "?" + url.Values{key: {message}}.Encode())
}

// parseID accepts positive decimal ids only.
func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
