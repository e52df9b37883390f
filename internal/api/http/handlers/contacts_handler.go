package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-basico/internal/service"
	"github.com/spec-kit/crm-basico/internal/validation"
	apperrors "github.com/spec-kit/crm-basico/pkg/util/errorutil"
)

const (
	msgCreated        = "Contacto creado exitosamente"
	msgUpdated        = "Contacto actualizado exitosamente"
	msgDeleted        = "Contacto eliminado exitosamente"
	msgDuplicateEmail = "Ya existe un contacto con ese correo electrónico"
	msgCreateFailed   = "Error al crear el contacto"
	msgNotFound       = "Contacto no encontrado"
	msgLoadFailed     = "Error al cargar el contacto"
	msgUpdateFailed   = "Error al actualizar el contacto"
	msgNotUpdated     = "No se pudo actualizar el contacto"
	msgNotDeleted     = "No se pudo eliminar el contacto"
	msgDeleteFailed   = "Error al eliminar el contacto"
)

// ContactsHandler serves the contact pages and form posts.
type ContactsHandler struct {
	service *service.ContactService
}

// NewContactsHandler constructs handler.
func NewContactsHandler(contactService *service.ContactService) *ContactsHandler {
	return &ContactsHandler{service: contactService}
}

// List GET /contactos.
func (h *ContactsHandler) List(c *fiber.Ctx) error {
	term := c.Query("q")
	contacts, err := h.service.List(c.UserContext(), term)
	if err != nil {
		return RenderError(c)
	}

	title := "Lista de Contactos"
	if strings.TrimSpace(term) != "" {
		title = `Resultados de búsqueda: "` + term + `"`
	}
	model := page(c, title)
	model["Contacts"] = contacts
	model["Query"] = term
	return render(c, fiber.StatusOK, "contacts", model)
}

// Create POST /contactos.
func (h *ContactsHandler) Create(c *fiber.Ctx) error {
	var form validation.ContactForm
	if err := c.BodyParser(&form); err != nil {
		return redirectWith(c, "/", "error", msgCreateFailed)
	}

	if _, err := h.service.Create(c.UserContext(), form); err != nil {
		switch {
		case apperrors.HasCode(err, apperrors.CodeValidation):
			return redirectWith(c, "/", "error", apperrors.ToDomainError(err).Message)
		case apperrors.HasCode(err, apperrors.CodeConflict):
			return redirectWith(c, "/", "error", msgDuplicateEmail)
		default:
			return redirectWith(c, "/", "error", msgCreateFailed)
		}
	}
	return redirectWith(c, "/", "message", msgCreated)
}

// EditForm GET /contactos/:id/editar.
func (h *ContactsHandler) EditForm(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return redirectWith(c, "/", "error", msgNotFound)
	}

	contact, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return redirectWith(c, "/", "error", msgNotFound)
		}
		return redirectWith(c, "/", "error", msgLoadFailed)
	}

	model := page(c, "Editar Contacto")
	model["Contact"] = contact
	model["Message"] = ""
	return render(c, fiber.StatusOK, "edit", model)
}

// Update POST /contactos/:id.
func (h *ContactsHandler) Update(c *fiber.Ctx) error {
	rawID := c.Params("id")
	editPath := "/contactos/" + rawID + "/editar"

	id, ok := parseID(rawID)
	if !ok {
		return redirectWith(c, "/contactos", "error", msgNotUpdated)
	}

	var form validation.ContactForm
	if err := c.BodyParser(&form); err != nil {
		return redirectWith(c, editPath, "error", msgUpdateFailed)
	}

	if err := h.service.Update(c.UserContext(), id, form); err != nil {
		switch {
		case apperrors.HasCode(err, apperrors.CodeValidation):
			return redirectWith(c, editPath, "error", apperrors.ToDomainError(err).Message)
		case apperrors.HasCode(err, apperrors.CodeConflict):
			return redirectWith(c, editPath, "error", msgDuplicateEmail)
		case apperrors.HasCode(err, apperrors.CodeNotFound):
			return redirectWith(c, "/contactos", "error", msgNotUpdated)
		default:
			return redirectWith(c, editPath, "error", msgUpdateFailed)
		}
	}
	return redirectWith(c, "/contactos", "message", msgUpdated)
}

// Delete POST /contactos/:id/eliminar.
func (h *ContactsHandler) Delete(c *fiber.Ctx) error {
	id, ok := parseID(c.Params("id"))
	if !ok {
		return redirectWith(c, "/", "error", msgNotDeleted)
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return redirectWith(c, "/", "error", msgNotDeleted)
		}
		return redirectWith(c, "/", "error", msgDeleteFailed)
	}
	return redirectWith(c, "/", "message", msgDeleted)
}

// Search GET /buscar.
func (h *ContactsHandler) Search(c *fiber.Ctx) error {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		return c.Redirect("/contactos")
	}
	return redirectWith(c, "/contactos", "q", term)
}
