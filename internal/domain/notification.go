package domain

import "time"

// Notification is the durable record of one case status transition.
type Notification struct {
	ID        string
	UserID    string
	CaseID    string
	OldStatus *CaseStatus
	NewStatus CaseStatus
	Seen      bool
	CreatedAt time.Time
}

// NotificationEvent is the payload delivered to live subscribers.
type NotificationEvent struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	CaseID    string       `json:"caseId"`
	OldStatus *CaseStatus  `json:"oldStatus"`
	NewStatus CaseStatus   `json:"newStatus"`
	Seen      bool         `json:"seen"`
	CreatedAt time.Time    `json:"createdAt"`
	Case      *CaseSummary `json:"case"`
}

// NewNotificationEvent builds the stream payload for a notification.
func NewNotificationEvent(n *Notification, summary *CaseSummary) NotificationEvent {
	return NotificationEvent{
		ID:        n.ID,
		UserID:    n.UserID,
		CaseID:    n.CaseID,
		OldStatus: n.OldStatus,
		NewStatus: n.NewStatus,
		Seen:      n.Seen,
		CreatedAt: n.CreatedAt,
		Case:      summary,
	}
}
