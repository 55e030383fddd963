package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/broadcast"
	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/repository"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// UnseenNotificationLimit caps listUnseen results.
const UnseenNotificationLimit = 25

// NotificationService serves the owner-facing notification surface and logs case events.
type NotificationService struct {
	notifications repository.NotificationRepository
	broadcaster   broadcast.Broadcaster
	dispatcher    events.Dispatcher
	logger        *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(notifications repository.NotificationRepository, broadcaster broadcast.Broadcaster, dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		broadcaster:   broadcaster,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// RegisterHandlers subscribes the structured event log.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	events.SubscribeAll(n.dispatcher, events.LogHandler(n.logger))
}

// ListUnseen returns the caller's most recent unseen notifications.
func (n *NotificationService) ListUnseen(ctx context.Context, userID string) ([]domain.Notification, error) {
	items, err := n.notifications.ListUnseen(ctx, userID, UnseenNotificationLimit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return items, nil
}

// MarkSeen flips a notification owned by userID to seen.
func (n *NotificationService) MarkSeen(ctx context.Context, userID, notificationID string) error {
	if err := n.notifications.MarkSeen(ctx, notificationID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return err
	}
	return nil
}

// Subscribe opens a live stream for userID that ends when ctx is done.
func (n *NotificationService) Subscribe(ctx context.Context, userID string) (<-chan domain.NotificationEvent, error) {
	return n.broadcaster.Subscribe(ctx, userID)
}
