package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-basico/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventContactCreated EventType = "contact_created"
	EventContactUpdated EventType = "contact_updated"
	EventContactDeleted EventType = "contact_deleted"
)

// Event is emitted by the contact service after a mutation commits.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ContactID int64       `json:"contact_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// ContactChangedPayload describes the stored values after create or update.
type ContactChangedPayload struct {
	Email  string               `json:"correo"`
	Status domain.ContactStatus `json:"estado"`
}

// NewEvent stamps a new event with an id and the current time.
func NewEvent(eventType EventType, contactID int64, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ContactID: contactID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
