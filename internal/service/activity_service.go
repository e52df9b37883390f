package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-basico/internal/events"
	"github.com/spec-kit/crm-basico/internal/observability"
)

// ActivityService records committed contact mutations as database events.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *ActivityService {
	return &ActivityService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventContactCreated, a.handle("insert"))
	a.dispatcher.Subscribe(events.EventContactUpdated, a.handle("update"))
	a.dispatcher.Subscribe(events.EventContactDeleted, a.handle("delete"))
}

func (a *ActivityService) handle(operation string) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		a.metrics.RecordContactEvent(operation)
		a.logger.Info("database operation",
			zap.String("type", "database"),
			zap.String("operation", operation),
			zap.String("table", contactsTable),
			zap.Int64("id", event.ContactID),
			zap.String("event_id", event.ID),
			zap.Any("payload", event.Payload))
		return nil
	}
}
