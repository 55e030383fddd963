package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/broadcast"
	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/push"
	"github.com/spec-kit/case-service/internal/repository"
)

// PushTitle is the title of every status push notification.
const PushTitle = "Case status updated"

// NotificationFanout persists, publishes and pushes one notification per status change.
type NotificationFanout struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	broadcaster   broadcast.Broadcaster
	push          push.Sender
	metrics       *observability.Metrics
	logger        *zap.Logger
	now           Clock
}

// FanoutDependencies bundles collaborators.
type FanoutDependencies struct {
	NotificationRepo repository.NotificationRepository
	UserRepo         repository.UserRepository
	Broadcaster      broadcast.Broadcaster
	Push             push.Sender
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	Clock            Clock
}

// NewNotificationFanout constructs the fanout.
func NewNotificationFanout(deps FanoutDependencies) *NotificationFanout {
	f := &NotificationFanout{
		notifications: deps.NotificationRepo,
		users:         deps.UserRepo,
		broadcaster:   deps.Broadcaster,
		push:          deps.Push,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		now:           deps.Clock,
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	if f.now == nil {
		f.now = systemClock
	}
	return f
}

// OnStatusChanged runs the three fan-out steps. Only a failure to persist is returned;
// live publish and push failures are logged.
func (f *NotificationFanout) OnStatusChanged(ctx context.Context, c *domain.Case, oldStatus, newStatus domain.CaseStatus) error {
	n := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    c.OwnerID,
		CaseID:    c.ID,
		NewStatus: newStatus,
		CreatedAt: f.now(),
	}
	if oldStatus != "" {
		old := oldStatus
		n.OldStatus = &old
	}
	if err := f.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	summary := c.Summary()
	if f.broadcaster != nil {
		if err := f.broadcaster.Publish(ctx, c.OwnerID, domain.NewNotificationEvent(n, &summary)); err != nil {
			f.logger.Warn("notification publish failed", zap.String("case_id", c.ID), zap.Error(err))
		}
	}

	f.sendPush(ctx, c, newStatus)
	return nil
}

func (f *NotificationFanout) sendPush(ctx context.Context, c *domain.Case, status domain.CaseStatus) {
	if f.push == nil || f.users == nil {
		return
	}
	user, err := f.users.GetByID(ctx, c.OwnerID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			f.logger.Warn("push recipient lookup failed", zap.String("user_id", c.OwnerID), zap.Error(err))
		}
		return
	}
	token := domain.StringValue(user.DeviceToken)
	if token == "" {
		return
	}

	msg := push.Message{
		Token: token,
		Title: PushTitle,
		Body:  PushBody(c, status),
		Data: map[string]string{
			"caseId": c.ID,
			"status": string(status),
		},
	}
	if err := f.push.Send(ctx, msg); err != nil {
		f.metrics.RecordPushFailure()
		f.logger.Warn("push delivery failed", zap.String("case_id", c.ID), zap.String("user_id", c.OwnerID), zap.Error(err))
	}
}

// PushBody renders "<label> is now <Status Label>.".
func PushBody(c *domain.Case, status domain.CaseStatus) string {
	return fmt.Sprintf("%s is now %s.", c.DisplayLabel(), status.Label())
}
