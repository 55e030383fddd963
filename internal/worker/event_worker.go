package worker

import (
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/service"
)

// StartEventWorkers registers the structured event log and, when configured, the broker forwarder.
func StartEventWorkers(notificationService *service.NotificationService, dispatcher events.Dispatcher, forwarder *events.KafkaForwarder) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if dispatcher != nil && forwarder != nil {
		events.SubscribeAll(dispatcher, forwarder.Handle)
	}
}
