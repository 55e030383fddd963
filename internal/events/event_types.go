package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/case-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCaseCreated       EventType = "case_created"
	EventCaseStatusChanged EventType = "case_status_changed"
	EventCaseEmailRecorded EventType = "case_email_recorded"
	EventCaseInfoRequested EventType = "case_info_requested"
	EventCaseInfoResponded EventType = "case_info_responded"
)

// AllEventTypes lists every event the services emit.
var AllEventTypes = []EventType{
	EventCaseCreated,
	EventCaseStatusChanged,
	EventCaseEmailRecorded,
	EventCaseInfoRequested,
	EventCaseInfoResponded,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	CaseID    string    `json:"case_id"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, caseID, actor string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CaseID:    caseID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// CaseCreatedPayload payload.
type CaseCreatedPayload struct {
	OwnerID string `json:"owner_id"`
	Store   string `json:"store"`
	Product string `json:"product"`
}

// CaseStatusChangedPayload payload.
type CaseStatusChangedPayload struct {
	OldStatus domain.CaseStatus `json:"old_status"`
	NewStatus domain.CaseStatus `json:"new_status"`
	Note      string            `json:"note,omitempty"`
}

// EmailDirection says whether a recorded email was sent or observed.
type EmailDirection string

const (
	EmailOutbound EmailDirection = "outbound"
	EmailInbound  EmailDirection = "inbound"
)

// CaseEmailRecordedPayload payload.
type CaseEmailRecordedPayload struct {
	Direction EmailDirection `json:"direction"`
	MessageID string         `json:"message_id,omitempty"`
	ThreadID  string         `json:"thread_id,omitempty"`
	Subject   string         `json:"subject"`
	To        string         `json:"to"`
}

// CaseInfoRequestedPayload payload.
type CaseInfoRequestedPayload struct {
	RequestID     string `json:"request_id"`
	RequiresFile  bool   `json:"requires_file"`
	RequiresYesNo bool   `json:"requires_yes_no"`
	Superseded    int    `json:"superseded"`
}

// CaseInfoRespondedPayload payload.
type CaseInfoRespondedPayload struct {
	RequestID  string `json:"request_id"`
	ResponseID string `json:"response_id"`
	HasFile    bool   `json:"has_file"`
}
