package domain

import (
	"errors"
	"time"
)

// ContactStatus represents the lifecycle tag of a contact.
type ContactStatus string

const (
	ContactStatusProspect ContactStatus = "prospecto"
	ContactStatusCustomer ContactStatus = "cliente"
	ContactStatusInactive ContactStatus = "inactivo"
)

// ContactStatuses lists every accepted status in display order.
var ContactStatuses = []ContactStatus{
	ContactStatusProspect,
	ContactStatusCustomer,
	ContactStatusInactive,
}

// Valid reports whether s is one of the enumerated statuses.
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactStatusProspect, ContactStatusCustomer, ContactStatusInactive:
		return true
	}
	return false
}

// ErrDuplicateEmail is returned when the email uniqueness constraint rejects a write.
var ErrDuplicateEmail = errors.New("contact email already exists")

// Contact is the single business entity managed by the CRM.
type Contact struct {
	ID        int64         `json:"id"`
	Name      string        `json:"nombre"`
	Email     string        `json:"correo"`
	Phone     *string       `json:"telefono"`
	Company   *string       `json:"empresa"`
	Status    ContactStatus `json:"estado"`
	CreatedAt time.Time     `json:"fecha_creacion"`
	UpdatedAt time.Time     `json:"fecha_actualizacion"`
}

// ContactInput carries the editable fields of a contact after validation.
// Updates replace every field.
type ContactInput struct {
	Name    string
	Email   string
	Phone   *string
	Company *string
	Status  ContactStatus
}

// Stats holds aggregate counts per status.
type Stats struct {
	Total     int64 `json:"total"`
	Prospects int64 `json:"prospectos"`
	Customers int64 `json:"clientes"`
	Inactive  int64 `json:"inactivos"`
}
