package worker

import (
	"github.com/spec-kit/crm-basico/internal/service"
)

// StartActivityWorker registers the activity handlers on the dispatcher.
func StartActivityWorker(activityService *service.ActivityService) {
	if activityService == nil {
		return
	}
	activityService.RegisterHandlers()
}
