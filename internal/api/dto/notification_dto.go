package dto

import (
	"time"

	"github.com/spec-kit/case-service/internal/domain"
)

// NotificationResponse is one unseen notification.
type NotificationResponse struct {
	ID        string             `json:"id"`
	CaseID    string             `json:"caseId"`
	OldStatus *domain.CaseStatus `json:"oldStatus"`
	NewStatus domain.CaseStatus  `json:"newStatus"`
	Seen      bool               `json:"seen"`
	CreatedAt time.Time          `json:"createdAt"`
}

// NewNotificationResponses maps stored notifications.
func NewNotificationResponses(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			CaseID:    n.CaseID,
			OldStatus: n.OldStatus,
			NewStatus: n.NewStatus,
			Seen:      n.Seen,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
