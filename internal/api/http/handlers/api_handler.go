package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-basico/internal/api/dto"
	"github.com/spec-kit/crm-basico/internal/service"
)

// APIHandler serves the JSON endpoints. Errors are rendered by the error
// middleware as {success:false,error}.
type APIHandler struct {
	service *service.ContactService
}

// NewAPIHandler constructs handler.
func NewAPIHandler(contactService *service.ContactService) *APIHandler {
	return &APIHandler{service: contactService}
}

// Contacts GET /api/contactos.
func (h *APIHandler) Contacts(c *fiber.Ctx) error {
	contacts, stats, err := h.service.Overview(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope{
		Success: true,
		Data:    dto.ContactsPayload{Contacts: contacts, Stats: stats},
	})
}

// Stats GET /api/stats.
func (h *APIHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.Envelope{Success: true, Data: stats})
}
