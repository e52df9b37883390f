package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/crm-basico/internal/domain"
	"github.com/spec-kit/crm-basico/internal/events"
	"github.com/spec-kit/crm-basico/internal/repository"
	"github.com/spec-kit/crm-basico/internal/validation"
	apperrors "github.com/spec-kit/crm-basico/pkg/util/errorutil"
)

const contactsTable = "contactos"

// ContactService coordinates validation, persistence and event publication
// for contacts. Errors it returns are *errorutil.DomainError values.
type ContactService struct {
	contacts   repository.ContactRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewContactService constructs the service.
func NewContactService(contacts repository.ContactRepository, dispatcher events.Dispatcher, logger *zap.Logger) *ContactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactService{
		contacts:   contacts,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// List returns every contact, or only those matching term when it is not blank.
func (s *ContactService) List(ctx context.Context, term string) ([]domain.Contact, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		contacts, err := s.contacts.ListAll(ctx)
		if err != nil {
			return nil, s.storageError("select", 0, err)
		}
		return contacts, nil
	}

	contacts, err := s.contacts.Search(ctx, term)
	if err != nil {
		return nil, s.storageError("search", 0, err)
	}
	return contacts, nil
}

// Get loads a single contact.
func (s *ContactService) Get(ctx context.Context, id int64) (*domain.Contact, error) {
	contact, found, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, s.storageError("select", id, err)
	}
	if !found {
		return nil, apperrors.NewNotFound("contacto", map[string]any{"id": id})
	}
	return contact, nil
}

// Create validates the form and stores a new contact.
func (s *ContactService) Create(ctx context.Context, form validation.ContactForm) (int64, error) {
	input, err := validation.Validate(form)
	if err != nil {
		return 0, validationError(err)
	}

	id, err := s.contacts.Create(ctx, input)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return 0, duplicateError(err)
		}
		return 0, s.storageError("insert", 0, err)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventContactCreated, id, events.ContactChangedPayload{
		Email:  input.Email,
		Status: input.Status,
	}))
	return id, nil
}

// Update validates the form and replaces every editable field of contact id.
func (s *ContactService) Update(ctx context.Context, id int64, form validation.ContactForm) error {
	input, err := validation.Validate(form)
	if err != nil {
		return validationError(err)
	}

	updated, err := s.contacts.Update(ctx, id, input)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return duplicateError(err)
		}
		return s.storageError("update", id, err)
	}
	if !updated {
		return apperrors.NewNotFound("contacto", map[string]any{"id": id})
	}

	s.publishEvent(ctx, events.NewEvent(events.EventContactUpdated, id, events.ContactChangedPayload{
		Email:  input.Email,
		Status: input.Status,
	}))
	return nil
}

// Delete removes contact id.
func (s *ContactService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.contacts.Delete(ctx, id)
	if err != nil {
		return s.storageError("delete", id, err)
	}
	if !deleted {
		return apperrors.NewNotFound("contacto", map[string]any{"id": id})
	}

	s.publishEvent(ctx, events.NewEvent(events.EventContactDeleted, id, nil))
	return nil
}

// Stats returns the dashboard counters.
func (s *ContactService) Stats(ctx context.Context) (domain.Stats, error) {
	stats, err := s.contacts.GetStats(ctx)
	if err != nil {
		return domain.Stats{}, s.storageError("count", 0, err)
	}
	return stats, nil
}

// Overview loads the full list and the counters concurrently.
func (s *ContactService) Overview(ctx context.Context) ([]domain.Contact, domain.Stats, error) {
	var (
		contacts []domain.Contact
		stats    domain.Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		contacts, err = s.List(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.Stats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.Stats{}, err
	}
	return contacts, stats, nil
}

// CheckConnection reports whether the store answers.
func (s *ContactService) CheckConnection(ctx context.Context) bool {
	return s.contacts.CheckConnection(ctx)
}

func (s *ContactService) storageError(operation string, id int64, err error) error {
	fields := []zap.Field{
		zap.String("type", "database"),
		zap.String("operation", operation),
		zap.String("table", contactsTable),
		zap.Error(err),
	}
	if id > 0 {
		fields = append(fields, zap.Int64("id", id))
	}
	s.logger.Error("contact store operation failed", fields...)
	return apperrors.NewInternalError(err)
}

func validationError(err error) error {
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		return apperrors.NewValidationError(vErr.Error(), vErr, map[string]any{"messages": vErr.Messages})
	}
	return apperrors.NewValidationError(err.Error(), err, nil)
}

func duplicateError(err error) error {
	return apperrors.NewConflict("Ya existe un contacto con ese correo electrónico", err)
}

func (s *ContactService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("contact event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("contact_id", event.ContactID),
			zap.Error(err))
	}
}
